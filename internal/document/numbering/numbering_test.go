package numbering

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	// Pooled connections to an in-memory database each see their own
	// empty database, so pin the pool to one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Sequence{}))
	return db
}

func testConfig() Config {
	return Config{
		Width:            4,
		PrefixProforma:   "PF-",
		PrefixInvoice:    "FV-",
		PrefixCreditNote: "DP-",
	}
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	auth := New(testDB(t), testConfig())
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := auth.Next(ctx, domain.TypeInvoice)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Sequences are scoped per type.
	got, err := auth.Next(ctx, domain.TypeProforma)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestNextConcurrentCallersGetDistinctNumbers(t *testing.T) {
	auth := New(testDB(t), testConfig())
	ctx := context.Background()

	const callers = 25
	results := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := auth.Next(ctx, domain.TypeInvoice)
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		assert.Equal(t, int64(i+1), n, "expected dense distinct sequence, got %v", results)
	}
}

func TestNextExhaustedAtWidth(t *testing.T) {
	db := testDB(t)
	auth := New(db, testConfig())
	ctx := context.Background()

	require.NoError(t, db.Create(&Sequence{DocumentType: string(domain.TypeInvoice), LastValue: 9998}).Error)

	got, err := auth.Next(ctx, domain.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), got)

	_, err = auth.Next(ctx, domain.TypeInvoice)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNextRejectsUnknownType(t *testing.T) {
	auth := New(testDB(t), testConfig())
	_, err := auth.Next(context.Background(), domain.DocumentType("receipt"))
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestFormat(t *testing.T) {
	auth := New(testDB(t), testConfig())

	assert.Equal(t, "FV-0042", auth.Format(domain.TypeInvoice, 42))
	assert.Equal(t, "PF-0001", auth.Format(domain.TypeProforma, 1))
	assert.Equal(t, "DP-9999", auth.Format(domain.TypeCreditNote, 9999))
}
