// Copyright (c) 2025 The DataBridge Project and its Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/databridge-io/databridge/policy"
)

type DeliveryReportOutput struct {
	Body []DeliveryRecordResponse `doc:"the deliveries that finished inside the window"`
}

// parseReportTime accepts either a bare date or a full RFC 3339 stamp, so
// operators can ask for "2025-06-01" without spelling out a timezone.
func parseReportTime(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// handler method for the delivery report
func (service *bridgeService) getDeliveryReport(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with bearer access token"`
		Start         string `query:"start" example:"2025-06-01" doc:"(Optional) earliest delivery start time, as a date or RFC 3339 stamp"`
		Stop          string `query:"stop" example:"2025-06-30" doc:"(Optional) latest delivery start time, as a date or RFC 3339 stamp"`
	}) (*DeliveryReportOutput, error) {

	user, err := service.authorize(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}
	if user.Role != policy.RoleDataTeam && user.Role != policy.RoleITTeam &&
		user.Role != policy.RoleLineProducer && user.Role != policy.RoleAdmin {
		return nil, huma.Error403Forbidden("Delivery reports are limited to production and operations roles")
	}

	start := time.Time{}
	stop := time.Now().UTC()
	if input.Start != "" {
		if start, err = parseReportTime(input.Start); err != nil {
			return nil, huma.Error422UnprocessableEntity(
				fmt.Sprintf("Invalid start time: '%s'", input.Start))
		}
	}
	if input.Stop != "" {
		if stop, err = parseReportTime(input.Stop); err != nil {
			return nil, huma.Error422UnprocessableEntity(
				fmt.Sprintf("Invalid stop time: '%s'", input.Stop))
		}
	}

	records, err := service.Deliveries.Records(start, stop)
	if err != nil {
		return nil, err
	}
	report := make([]DeliveryRecordResponse, 0, len(records))
	for _, record := range records {
		report = append(report, deliveryView(record))
	}
	return &DeliveryReportOutput{Body: report}, nil
}
