package pagination

import (
	"fmt"
	"strconv"

	"amora-realtime/pkg/constants"
)

// Params represents parsed pagination query parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Response represents one page of results
type Response struct {
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	Total      int64       `json:"total"`
	TotalPages int         `json:"totalPages"`
	Data       interface{} `json:"data"`
}

const DefaultPage = 1

// ParseParams parses page and limit query parameters, clamping the limit to
// the configured maximum.
func ParseParams(pageStr, limitStr string) (*Params, error) {
	page := DefaultPage
	limit := constants.DefaultPageSize

	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, fmt.Errorf("invalid page parameter: %w", err)
		}
		if p >= 1 {
			page = p
		}
	}

	if limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: %w", err)
		}
		switch {
		case l < 1:
			limit = 1
		case l > constants.MaxPageSize:
			limit = constants.MaxPageSize
		default:
			limit = l
		}
	}

	return &Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, nil
}

// TotalPages calculates total pages from total count and limit
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}

// BuildResponse creates a standardized page envelope
func BuildResponse(params *Params, total int64, data interface{}) *Response {
	return &Response{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: TotalPages(total, params.Limit),
		Data:       data,
	}
}
