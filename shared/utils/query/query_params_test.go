package query

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/npo?"+rawQuery, nil)
	return c
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		query string
		want  Page
	}{
		{"", Page{Page: 1, Limit: DefaultLimit}},
		{"page=3&limit=5", Page{Page: 3, Limit: 5}},
		{"page=-1&limit=1000", Page{Page: 1, Limit: MaxLimit}},
		{"page=abc&limit=0", Page{Page: 1, Limit: DefaultLimit}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, ParsePage(newContext(tc.query)), tc.query)
	}
}

func TestParseList(t *testing.T) {
	c := newContext("category=%D0%A1%D0%BF%D0%BE%D1%80%D1%82&category=a,b&category=a&category=")
	require.Equal(t, []string{"Спорт", "a", "b"}, ParseList(c, "category"))
	require.Nil(t, ParseList(c, "city"))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\% \_x\\`, EscapeLike(`100% _x\`))
}

func TestBuildPaginationResponse(t *testing.T) {
	p := BuildPaginationResponse(Page{Page: 2, Limit: 20}, 45)
	require.Equal(t, int64(3), p.TotalPages)
	require.True(t, p.HasNext)
	require.True(t, p.HasPrev)

	p = BuildPaginationResponse(Page{Page: 1, Limit: 20}, 0)
	require.Equal(t, int64(0), p.TotalPages)
	require.False(t, p.HasNext)
	require.False(t, p.HasPrev)
}

func TestPageOffset(t *testing.T) {
	require.Equal(t, 40, Page{Page: 3, Limit: 20}.Offset())
}
