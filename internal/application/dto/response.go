// Package dto holds the request and response shapes of the HTTP API.
package dto

import (
	"strconv"

	"github.com/turtacn/taskflow/pkg/errors"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	RetryAfter *int              `json:"retryAfter,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// MessageResponse 仅包含提示信息的响应
type MessageResponse struct {
	Message string `json:"message"`
}

// Pagination 分页元数据
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// NewErrorResponse 将 AppError 转换为响应体
// The retryAfter detail of a rate limit error is lifted to a top-level number.
func NewErrorResponse(appErr *errors.AppError) ErrorResponse {
	body := ErrorResponse{Error: appErr.Code, Message: appErr.Message}
	for k, v := range appErr.Details {
		if k == "retryAfter" {
			if n, err := strconv.Atoi(v); err == nil {
				body.RetryAfter = &n
				continue
			}
		}
		if body.Details == nil {
			body.Details = make(map[string]string, len(appErr.Details))
		}
		body.Details[k] = v
	}
	return body
}
