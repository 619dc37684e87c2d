// Package report forwards smoke test results to a collecting service.
package report

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmesh/smoketest"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidResult = "report_invalid_result"
	ErrTypeQueueFull     = "report_queue_full"
	ErrTypeSendFailed    = "report_send_failed"
)

type ReportHandler struct {
	// The URL where results are posted.
	Endpoint string

	// The transport used to post results. Nil means http.DefaultTransport.
	Transport http.RoundTripper

	ResultChan chan smoketest.Results //buffered
}

// Send queues a result. It fails when the queue is full.
func (rh ReportHandler) Send(ctx context.Context, res smoketest.Results) error {
	select {
	case rh.ResultChan <- res:
		return nil
	default:
		return errors.New("report queue is full").
			WithType(ErrTypeQueueFull).
			WithTag("size", cap(rh.ResultChan))
	}
}

// HandleResults starts forwarding queued results until the context is done.
func (rh ReportHandler) HandleResults(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res := <-rh.ResultChan:
				if err := instrumentReportValidation(func() error {
					return rh.ValidateResult(res)
				}); err != nil {
					logs.Warn(errors.Newf("invalid smoke test result").
						WithTag("seed", res.Seed).
						WithTag("checks", len(res.Checks)).
						Wrap(err))
				} else {
					rh.Forward(ctx, res)
				}
			}
		}
	}()
}

// Forward posts the result in the background.
func (rh ReportHandler) Forward(ctx context.Context, res smoketest.Results) {
	go func() {
		if err := instrumentReportSend(rh.Endpoint, func() error {
			return rh.post(ctx, res)
		}); err != nil {
			logs.Warn(errors.New("forwarding smoke test result failed").Wrap(err))
		}
	}()
}

// ValidateResult rejects results that do not describe a complete run.
func (rh ReportHandler) ValidateResult(res smoketest.Results) error {
	if res.Triangles <= 0 {
		return errors.New("result has no triangles").
			WithType(ErrTypeInvalidResult)
	}

	if res.Inserted > res.Triangles {
		return errors.New("result inserted more triangles than generated").
			WithType(ErrTypeInvalidResult).
			WithTag("inserted", res.Inserted).
			WithTag("triangles", res.Triangles)
	}

	if len(res.Checks) == 0 {
		return errors.New("result has no checks").
			WithType(ErrTypeInvalidResult)
	}
	return nil
}

func (rh ReportHandler) post(ctx context.Context, res smoketest.Results) error {
	b, err := json.Marshal(res)
	if err != nil {
		return errors.New("encoding smoke test result failed").Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rh.Endpoint, bytes.NewReader(b))
	if err != nil {
		return errors.New("creating report request failed").
			WithTag("endpoint", rh.Endpoint).
			Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	transport := rh.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		return errors.New("posting smoke test result failed").
			WithType(ErrTypeSendFailed).
			WithTag("endpoint", rh.Endpoint).
			Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New("smoke test result rejected").
			WithType(ErrTypeSendFailed).
			WithTag("endpoint", rh.Endpoint).
			WithTag("status", resp.StatusCode)
	}
	return nil
}
