package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// ChinaPostName identifies the China Post announcement search.
const ChinaPostName = "chinapost"

const chinaPostDateLayout = "2006-01-02"

// DefaultChinaPostOptions returns the production endpoints. The search
// endpoint reports dates only, so records are matched on the window's start day.
func DefaultChinaPostOptions() Options {
	return Options{
		HomeURL:  "https://www.chinapost.com.cn",
		APIURL:   "https://iframe.chinapost.com.cn/jsp/util/Search.jsp?community=ChinaPostJT&lucenelist=1813902036",
		LinkBase: "https://www.chinapost.com.cn",
		PageSize: 10,
		Timeout:  60 * time.Second,
	}
}

type chinaPostResponse struct {
	Data []struct {
		Title string `json:"title"`
		Time  string `json:"time"`
		URL   string `json:"url"`
	} `json:"data"`
}

// ChinaPost searches the China Post group site.
type ChinaPost struct {
	portal
}

// NewChinaPost builds the adapter; zero-valued options fall back to DefaultChinaPostOptions.
func NewChinaPost(client Doer, opts Options, logger *zap.Logger) *ChinaPost {
	return &ChinaPost{portal: newPortal(ChinaPostName, client, opts.withDefaults(DefaultChinaPostOptions()), logger)}
}

// Search implements bid.Source.
func (s *ChinaPost) Search(ctx context.Context, keyword string, window bid.Window) ([]bid.Record, error) {
	if err := s.checkKeyword(keyword); err != nil {
		return nil, err
	}
	if err := s.preflight(ctx, keyword); err != nil {
		return nil, err
	}

	var resp chinaPostResponse
	if err := s.post(ctx, keyword, s.searchURL(keyword), nil, &resp); err != nil {
		return nil, err
	}

	items := resp.Data
	if len(items) > s.opts.PageSize {
		items = items[:s.opts.PageSize]
	}
	page := make([]pageEntry, 0, len(items))
	for _, item := range items {
		page = append(page, pageEntry{
			record: bid.Record{
				Title:  cleanTitle(item.Title),
				Link:   s.opts.LinkBase + item.URL,
				Source: ChinaPostName,
			},
			stamp: item.Time,
			ref:   item.URL,
		})
	}
	return s.keep(keyword, "search", chinaPostDateLayout, page, onStartDay(window))
}

func (s *ChinaPost) searchURL(keyword string) string {
	sep := "?"
	if strings.Contains(s.opts.APIURL, "?") {
		sep = "&"
	}
	return s.opts.APIURL + sep + "q=" + url.QueryEscape(keyword)
}
