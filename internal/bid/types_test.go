package bid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordSameIgnoresTimeAndSource(t *testing.T) {
	t.Parallel()

	a := Record{Title: "XX培训项目", DocType: "采购公告", Link: "https://x/1", Source: "tower", CreatedAt: time.Unix(10, 0)}
	b := Record{Title: "XX培训项目", DocType: "采购公告", Link: "https://x/1", Source: "telecom", CreatedAt: time.Unix(20, 0)}
	require.True(t, a.Same(b))

	b.DocType = "候选人及结果公示"
	require.False(t, a.Same(b))
}

func TestRecordSameWithoutDocType(t *testing.T) {
	t.Parallel()

	a := Record{Title: "邮政培训", Link: "https://post/1"}
	b := Record{Title: "邮政培训", Link: "https://post/1"}
	require.True(t, a.Same(b))

	b.Link = "https://post/2"
	require.False(t, a.Same(b))
}

func TestKeywordSetQueriesOrder(t *testing.T) {
	t.Parallel()

	ks := KeywordSet{Main: []string{"培训", "竞赛"}, Others: []string{"论坛"}}
	require.Equal(t, []string{"培训", "竞赛", "论坛"}, ks.Queries())
}

func TestWindowAdmitsFromStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(now, 15*time.Minute)

	require.True(t, w.Admits(now.Add(-15*time.Minute)))
	require.True(t, w.Admits(now.Add(-time.Second)))
	require.True(t, w.Admits(now.Add(time.Minute)))
	require.False(t, w.Admits(now.Add(-16*time.Minute)))
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), w.StartDay())
}

func TestSourceErrorUnwraps(t *testing.T) {
	t.Parallel()

	inner := ErrEmptyKeyword
	err := &SourceError{Source: "tower", Keyword: "", Err: inner}
	require.ErrorIs(t, err, ErrEmptyKeyword)
	require.Contains(t, err.Error(), "tower")
}
