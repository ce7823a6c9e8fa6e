package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		pageSize   int
		pageQuery  string
		wantPage   int
		wantPages  int
		wantOffset int
	}{
		{"first page", 13, 10, "1", 1, 2, 0},
		{"second page", 13, 10, "2", 2, 2, 10},
		{"page above last clamps to last", 13, 10, "3", 2, 2, 10},
		{"page below one clamps to first", 13, 10, "0", 1, 2, 0},
		{"negative clamps to first", 13, 10, "-4", 1, 2, 0},
		{"non-numeric clamps to first", 13, 10, "abc", 1, 2, 0},
		{"missing defaults to first", 13, 10, "", 1, 2, 0},
		{"exact multiple", 20, 10, "2", 2, 2, 10},
		{"empty listing is one page", 0, 10, "1", 1, 1, 0},
		{"empty listing clamps high pages", 0, 10, "7", 1, 1, 0},
		{"single item", 1, 10, "1", 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := Paginate(tt.total, tt.pageSize, tt.pageQuery)
			assert.Equal(t, tt.wantPage, pg.Page)
			assert.Equal(t, tt.wantPages, pg.TotalPages)
			assert.Equal(t, tt.wantOffset, pg.Offset())
			assert.Equal(t, tt.total, pg.Total)
		})
	}
}

func TestPaginatePageCountFormula(t *testing.T) {
	// ceil(M/N) pages, last page holds the remainder
	for _, m := range []int64{0, 1, 9, 10, 11, 19, 20, 21, 100} {
		pg := Paginate(m, 10, "1")
		want := int((m + 9) / 10)
		if want < 1 {
			want = 1
		}
		assert.Equal(t, want, pg.TotalPages, "total=%d", m)
	}
}
