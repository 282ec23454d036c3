package authz

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"trackdesk/models"
)

// MockDB represents a mock database connection for unit tests
type MockDB struct {
	mock.Mock
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	return mockArgs.Get(0).(pgx.Row)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	return mockArgs.Get(0).(pgx.Rows), mockArgs.Error(1)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	return pgconn.NewCommandTag("UPDATE 1"), mockArgs.Error(1)
}

func (m *MockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	mockArgs := m.Called(ctx)
	return mockArgs.Get(0).(pgx.Tx), mockArgs.Error(1)
}

type MockRow struct {
	mock.Mock
}

func (m *MockRow) Scan(dest ...interface{}) error {
	mockArgs := m.Called(dest...)
	return mockArgs.Error(0)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		p       Principal
		ownerID int64
		allowed bool
	}{
		{"admin over own entity", Principal{UserID: 1, Role: models.RoleAdmin}, 1, true},
		{"admin over any entity", Principal{UserID: 1, Role: models.RoleAdmin}, 99, true},
		{"client over own entity", Principal{UserID: 7, Role: models.RoleClient}, 7, true},
		{"client over foreign entity", Principal{UserID: 7, Role: models.RoleClient}, 8, false},
		{"unknown role over own entity", Principal{UserID: 7, Role: "other"}, 7, true},
		{"unknown role over foreign entity", Principal{UserID: 7, Role: "other"}, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, Decide(tt.p, tt.ownerID))
		})
	}
}

func TestAuthorizeAdminAllowed(t *testing.T) {
	mockDB := &MockDB{}
	mockRow := &MockRow{}
	mockRow.On("Scan", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*int64)) = 42
	}).Return(nil)
	mockDB.On("QueryRow", mock.Anything, mock.Anything, int64(5)).Return(mockRow)

	gate := NewGate(mockDB)
	admin := Principal{UserID: 1, Role: models.RoleAdmin}

	err := gate.Authorize(context.Background(), admin, Ref{Kind: KindTask, ID: 5})
	assert.NoError(t, err)
}

func TestAuthorizeClientOwnChain(t *testing.T) {
	mockDB := &MockDB{}
	mockRow := &MockRow{}
	mockRow.On("Scan", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*int64)) = 7
	}).Return(nil)
	mockDB.On("QueryRow", mock.Anything, mock.Anything, int64(3)).Return(mockRow)

	gate := NewGate(mockDB)
	client := Principal{UserID: 7, Role: models.RoleClient}

	err := gate.Authorize(context.Background(), client, Ref{Kind: KindPhase, ID: 3})
	assert.NoError(t, err)
}

func TestAuthorizeClientForeignChainDenied(t *testing.T) {
	mockDB := &MockDB{}
	mockRow := &MockRow{}
	mockRow.On("Scan", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*int64)) = 8
	}).Return(nil)
	mockDB.On("QueryRow", mock.Anything, mock.Anything, int64(3)).Return(mockRow)

	gate := NewGate(mockDB)
	client := Principal{UserID: 7, Role: models.RoleClient}

	err := gate.Authorize(context.Background(), client, Ref{Kind: KindPhase, ID: 3})
	assert.ErrorIs(t, err, ErrDenied)
}

func TestAuthorizeMissingEntity(t *testing.T) {
	mockDB := &MockDB{}
	mockRow := &MockRow{}
	mockRow.On("Scan", mock.Anything).Return(pgx.ErrNoRows)
	mockDB.On("QueryRow", mock.Anything, mock.Anything, int64(9999)).Return(mockRow)

	gate := NewGate(mockDB)
	admin := Principal{UserID: 1, Role: models.RoleAdmin}

	err := gate.Authorize(context.Background(), admin, Ref{Kind: KindNote, ID: 9999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorizeUnknownKind(t *testing.T) {
	gate := NewGate(&MockDB{})
	admin := Principal{UserID: 1, Role: models.RoleAdmin}

	err := gate.Authorize(context.Background(), admin, Ref{Kind: "widget", ID: 1})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDenied)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestAuthorizeAllKindsResolve(t *testing.T) {
	kinds := []Kind{KindUser, KindProject, KindPhase, KindTask, KindComment, KindUpdate, KindNote, KindAttachment}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			mockDB := &MockDB{}
			mockRow := &MockRow{}
			mockRow.On("Scan", mock.Anything).Run(func(args mock.Arguments) {
				*(args.Get(0).(*int64)) = 7
			}).Return(nil)
			mockDB.On("QueryRow", mock.Anything, mock.Anything, int64(1)).Return(mockRow)

			gate := NewGate(mockDB)
			client := Principal{UserID: 7, Role: models.RoleClient}

			err := gate.Authorize(context.Background(), client, Ref{Kind: kind, ID: 1})
			assert.NoError(t, err)
		})
	}
}
