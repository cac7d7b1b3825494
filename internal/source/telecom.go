package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// TelecomName identifies the China Telecom procurement portal.
const TelecomName = "telecom"

const telecomTimeLayout = "2006-01-02 15:04:05"

// telecomCategory pairs the search API's obfuscated type code with the
// numeric type the detail page expects.
type telecomCategory struct {
	payloadType string
	detailType  string
}

// The search API accepts a single category per request.
var telecomCategories = []telecomCategory{
	{"xi9s", "6"},
	{"e2no", "1"},
	{"e3erht", "3"},
	{"ru7of", "4"},
	{"e8vif", "5"},
	{"ds3fd2s", "14"},
	{"f1f7e", "3"},
	{"n0eves", "7"},
	{"ow7t", "2"},
	{"th4gie", "8"},
	{"s1x5e", "7"},
}

// DefaultTelecomOptions returns the production endpoints.
func DefaultTelecomOptions() Options {
	return Options{
		HomeURL:  "https://caigou.chinatelecom.com.cn",
		APIURL:   "https://caigou.chinatelecom.com.cn/portal/base/announcementJoin/queryListNew",
		LinkBase: "https://caigou.chinatelecom.com.cn",
		PageSize: 10,
		Timeout:  120 * time.Second,
	}
}

type telecomQuery struct {
	Title        string `json:"title"`
	PageSize     int    `json:"pageSize"`
	PageNum      int    `json:"pageNum"`
	Type         string `json:"type"`
	CreatorName  string `json:"creatorName"`
	ProvinceCode string `json:"provinceCode"`
}

type telecomResponse struct {
	Data struct {
		List []struct {
			DocID            flexString `json:"docId"`
			DocTitle         string     `json:"docTitle"`
			DocType          string     `json:"docType"`
			DocTypeCode      flexString `json:"docTypeCode"`
			SecurityViewCode flexString `json:"securityViewCode"`
			CreateDate       string     `json:"createDate"`
		} `json:"list"`
	} `json:"data"`
}

// Telecom searches the China Telecom procurement portal.
type Telecom struct {
	portal
}

// NewTelecom builds the adapter; zero-valued options fall back to DefaultTelecomOptions.
func NewTelecom(client Doer, opts Options, logger *zap.Logger) *Telecom {
	return &Telecom{portal: newPortal(TelecomName, client, opts.withDefaults(DefaultTelecomOptions()), logger)}
}

// Search implements bid.Source.
func (s *Telecom) Search(ctx context.Context, keyword string, window bid.Window) ([]bid.Record, error) {
	if err := s.checkKeyword(keyword); err != nil {
		return nil, err
	}
	if err := s.preflight(ctx, keyword); err != nil {
		return nil, err
	}

	var out []bid.Record
	for _, cat := range telecomCategories {
		var resp telecomResponse
		query := telecomQuery{
			Title:    keyword,
			PageSize: s.opts.PageSize,
			PageNum:  1,
			Type:     cat.payloadType,
		}
		if err := s.post(ctx, keyword, s.opts.APIURL, query, &resp); err != nil {
			return nil, err
		}

		page := make([]pageEntry, 0, len(resp.Data.List))
		for _, item := range resp.Data.List {
			page = append(page, pageEntry{
				record: bid.Record{
					Title:   cleanTitle(item.DocTitle),
					DocType: item.DocType,
					Link:    s.detailLink(cat, item.DocID, item.DocTypeCode, item.SecurityViewCode),
					Source:  TelecomName,
				},
				stamp: item.CreateDate,
				ref:   item.DocID.String(),
			})
		}
		kept, err := s.keep(keyword, cat.payloadType, telecomTimeLayout, page, sinceStart(window))
		if err != nil {
			return nil, err
		}
		out = append(out, kept...)
	}
	return out, nil
}

func (s *Telecom) detailLink(cat telecomCategory, id, typeCode, viewCode flexString) string {
	return fmt.Sprintf("%s/DeclareDetails?id=%s&type=%s&docTypeCode=%s&securityViewCode=%s",
		s.opts.LinkBase,
		url.QueryEscape(id.String()),
		cat.detailType,
		url.QueryEscape(typeCode.String()),
		url.QueryEscape(viewCode.String()),
	)
}
