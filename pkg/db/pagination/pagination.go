// Package pagination implements the token-based page scheme shared by
// list endpoints.
package pagination

import (
	"encoding/base64"
	"strconv"
)

type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int32  `form:"page_size" json:"page_size"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	PageSize      int32  `json:"page_size"`
}

const DefaultPageSize = 50

// Offset decodes the page token into a row offset. Malformed tokens
// restart from the beginning rather than erroring.
func (p Pagination) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	return int(p.PageSize)
}

func NextToken(offset, fetched int) string {
	if fetched == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset + fetched)))
}
