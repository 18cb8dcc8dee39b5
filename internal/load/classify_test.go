package load

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimal-data/ingestor/internal/etl"
)

func TestClassifyPgConnectionErrorsAsTransient(t *testing.T) {
	for _, code := range []pq.ErrorCode{"08006", "53300", "57P01"} {
		err := classifyPgError("ahorramas:1", &pq.Error{Code: code})
		assert.True(t, etl.IsTransient(err), "class %s must be transient", code.Class())
	}
}

func TestClassifyPgDataErrorsCondemnTheRecord(t *testing.T) {
	err := classifyPgError("ahorramas:1", &pq.Error{Code: "23505"})

	var re *etl.RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "ahorramas:1", re.Key)
}

func TestClassifyPgDataErrorWithoutKeyIsFatal(t *testing.T) {
	err := classifyPgError("", &pq.Error{Code: "23505"})
	assert.False(t, etl.IsTransient(err))

	var re *etl.RecordError
	assert.False(t, errors.As(err, &re))
}

func TestClassifyPgUnknownErrorIsFatal(t *testing.T) {
	err := classifyPgError("ahorramas:1", &pq.Error{Code: "42601"}) // syntax error
	assert.False(t, etl.IsTransient(err))
}

func TestClassifyMssqlConstraintCondemnsTheRecord(t *testing.T) {
	for _, number := range []int32{2627, 2601, 547, 8152} {
		err := classifyMssqlError("carrefour:9", mssql.Error{Number: number})

		var re *etl.RecordError
		require.True(t, errors.As(err, &re), "number %d", number)
		assert.Equal(t, "carrefour:9", re.Key)
	}
}

func TestClassifyMssqlDeadlockIsTransient(t *testing.T) {
	err := classifyMssqlError("carrefour:9", mssql.Error{Number: 1205})
	assert.True(t, etl.IsTransient(err))
}

func TestClassifyMssqlUnknownErrorIsFatal(t *testing.T) {
	err := classifyMssqlError("carrefour:9", mssql.Error{Number: 102})
	assert.False(t, etl.IsTransient(err))
}
