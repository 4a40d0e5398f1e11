package api_test

import (
	"testing"

	"github.com/kimalale/tactical-workflow-manager/internal/assert"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

func TestOperationValidate(t *testing.T) {
	as := assert.New(t)

	for _, op := range []api.Operation{
		api.OpFind, api.OpFindOne, api.OpInsert, api.OpInsertMany,
		api.OpUpdate, api.OpUpdateMany, api.OpDelete, api.OpDeleteMany,
		api.OpCount, api.OpQuery,
	} {
		as.NoError(op.Validate(), string(op))
	}

	as.ErrorIs(api.Operation("drop").Validate(), api.ErrInvalidOperation)
	as.ErrorIs(api.Operation("").Validate(), api.ErrInvalidOperation)
}

func TestDatabaseConnectionValidate(t *testing.T) {
	as := assert.New(t)

	conn := &api.DatabaseConnection{Name: "main", Type: api.DatabaseMongo}
	as.NoError(conn.Validate())

	conn.Type = "oracle"
	as.ErrorIs(conn.Validate(), api.ErrInvalidDatabaseType)

	conn = &api.DatabaseConnection{Type: api.DatabaseMySQL}
	as.ErrorIs(conn.Validate(), api.ErrConnectionNameRequired)
}

func TestDatabaseTypeIsSQL(t *testing.T) {
	as := assert.New(t)
	as.True(api.DatabasePostgres.IsSQL())
	as.True(api.DatabaseMySQL.IsSQL())
	as.False(api.DatabaseMongo.IsSQL())
	as.False(api.DatabaseFirebase.IsSQL())
}

func TestConnectionSummary(t *testing.T) {
	as := assert.New(t)

	conn := &api.DatabaseConnection{
		Name:     "main",
		Type:     api.DatabasePostgres,
		Password: "secret",
		Status:   api.ConnectionConnected,
	}
	as.Equal(api.ConnectionSummary{
		Name:   "main",
		Type:   api.DatabasePostgres,
		Status: api.ConnectionConnected,
	}, conn.Summary())
}
