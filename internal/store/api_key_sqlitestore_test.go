package store

import (
	"context"
	"database/sql"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/stretchr/testify/suite"
)

type apiKeySQLiteStoreSuite struct {
	apiKeyStore *APIKeySQLiteStore
	db          *sql.DB
	suite.Suite
}

func TestAPIKeySQLiteStore(t *testing.T) {
	suite.Run(t, new(apiKeySQLiteStoreSuite))
}

func (suite *apiKeySQLiteStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db

	RunMigrations(db, internal.MigrationsDir)

	suite.apiKeyStore = NewAPIKeySQLiteStore(db, db)
}

func (suite *apiKeySQLiteStoreSuite) TearDownSuite() {
	suite.db.Close()
}

func (suite *apiKeySQLiteStoreSuite) TestCreateReadDeleteAPIKey() {
	ctx := context.Background()
	value := uuid.NewString()

	key, err := suite.apiKeyStore.CreateAPIKey(ctx, value)
	suite.NoError(err)
	suite.NotZero(key.ID)
	suite.Equal(value, key.Value)

	byValue, err := suite.apiKeyStore.ReadAPIKeyByValue(ctx, value)
	suite.NoError(err)
	suite.Equal(key.ID, byValue.ID)

	keys, err := suite.apiKeyStore.ListAPIKeys(ctx)
	suite.NoError(err)
	suite.NotEmpty(keys)

	suite.NoError(suite.apiKeyStore.DeleteAPIKey(ctx, key.ID))
	_, err = suite.apiKeyStore.ReadAPIKeyByID(ctx, key.ID)
	suite.ErrorIs(err, sql.ErrNoRows)
}
