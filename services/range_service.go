package services

import (
	"strconv"
	"strings"

	"usercenter/apperror"
)

// RangeResponse is the envelope of the range endpoint.
type RangeResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data []string `json:"data"`
}

type RangeService struct {
	max int
}

// NewRangeService caps the accepted num at max.
func NewRangeService(max int) *RangeService {
	return &RangeService{max: max}
}

// Range returns the decimal strings "1".."num". num must be an integer in [1, max].
func (s *RangeService) Range(numStr string) (*RangeResponse, error) {
	num, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil || num < 1 {
		return nil, apperror.BadRequest("num must be a valid number")
	}
	if num > s.max {
		return nil, apperror.BadRequest("num must not exceed %d", s.max)
	}

	data := make([]string, 0, num)
	for i := 1; i <= num; i++ {
		data = append(data, strconv.Itoa(i))
	}
	return &RangeResponse{Code: 0, Msg: "ok", Data: data}, nil
}
