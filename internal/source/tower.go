package source

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bidwatch/internal/bid"
)

// TowerName identifies the China Tower procurement portal.
const TowerName = "tower"

const towerTimeLayout = "2006-01-02 15:04:05"

type towerNoticeType struct {
	id    string
	label string
}

var towerNoticeTypes = []towerNoticeType{
	{"2", "采购公告"},
	{"45", "候选人及结果公示"},
}

// DefaultTowerOptions returns the production endpoints.
func DefaultTowerOptions() Options {
	return Options{
		HomeURL:  "http://www.tower.com.cn/",
		APIURL:   "http://www.tower.com.cn/supportal/v1/obp-notice/query-notice",
		LinkBase: "http://www.tower.com.cn",
		PageSize: 20,
		Timeout:  120 * time.Second,
	}
}

type towerQuery struct {
	NoticeTitle         string `json:"noticeTitle"`
	PurchaseNoticeType  string `json:"purchaseNoticeType"`
	OrgName             string `json:"orgName"`
	Times               string `json:"times"`
	TransformationField string `json:"transformationField"`
	ConversionMethod    string `json:"conversionMethod"`
	Current             int    `json:"current"`
	Size                int    `json:"size"`
}

type towerResponse struct {
	Data struct {
		Records []struct {
			NoticeID    flexString `json:"noticeId"`
			NoticeTitle string     `json:"noticeTitle"`
			CreateTime  string     `json:"createTime"`
		} `json:"records"`
	} `json:"data"`
}

// Tower searches the China Tower procurement portal.
type Tower struct {
	portal
}

// NewTower builds the adapter; zero-valued options fall back to DefaultTowerOptions.
func NewTower(client Doer, opts Options, logger *zap.Logger) *Tower {
	return &Tower{portal: newPortal(TowerName, client, opts.withDefaults(DefaultTowerOptions()), logger)}
}

// Search implements bid.Source.
func (s *Tower) Search(ctx context.Context, keyword string, window bid.Window) ([]bid.Record, error) {
	if err := s.checkKeyword(keyword); err != nil {
		return nil, err
	}
	if err := s.preflight(ctx, keyword); err != nil {
		return nil, err
	}

	var out []bid.Record
	for _, nt := range towerNoticeTypes {
		var resp towerResponse
		query := towerQuery{
			NoticeTitle:        keyword,
			PurchaseNoticeType: nt.id,
			Current:            1,
			Size:               s.opts.PageSize,
		}
		if err := s.post(ctx, keyword, s.opts.APIURL, query, &resp); err != nil {
			return nil, err
		}

		page := make([]pageEntry, 0, len(resp.Data.Records))
		for _, item := range resp.Data.Records {
			page = append(page, pageEntry{
				record: bid.Record{
					Title:   cleanTitle(item.NoticeTitle),
					DocType: nt.label,
					Link:    s.opts.LinkBase + "/#/noticeDetail?id=" + url.QueryEscape(item.NoticeID.String()),
					Source:  TowerName,
				},
				stamp: item.CreateTime,
				ref:   item.NoticeID.String(),
			})
		}
		kept, err := s.keep(keyword, nt.id, towerTimeLayout, page, sinceStart(window))
		if err != nil {
			return nil, err
		}
		out = append(out, kept...)
	}
	return out, nil
}
