package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestGetUserID(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectBegin()
	testID := "8d1a8a4c-1f0e-4c55-8e0b-0b5ad2d1b7c4"
	mock.ExpectQuery("INSERT INTO users \\(username\\) VALUES \\(\\$1\\) ON CONFLICT \\(username\\)").
		WithArgs("student@example.edu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testID))
	mock.ExpectRollback()

	// Look up the user.
	tx, err := db.Begin()
	assert.NoError(err, "unable to begin a transaction")
	id, err := GetUserID(ctx, tx, "student@example.edu")
	assert.NoError(err, "unexpected error occurred while looking up the user ID")
	assert.Equal(testID, id)
	_ = tx.Rollback()

	// Verify that all mock expectations were met.
	err = mock.ExpectationsWereMet()
	assert.NoError(err, "not all mock expectations were met")
}
