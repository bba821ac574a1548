package pricer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

const defaultQuoteTimeout = 10 * time.Second

// QuotePricer fetches prices from a finance-chart style HTTP endpoint
// (Yahoo v8 chart format): the response carries the last market price under
// chart.result[0].meta.regularMarketPrice.
type QuotePricer struct {
	baseURL string
	client  *http.Client
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// NewQuotePricer creates a pricer for a chart endpoint. The pair symbol is
// appended to baseURL as "<FROM>-<TO>".
func NewQuotePricer(baseURL string, client *http.Client) *QuotePricer {
	if client == nil {
		client = &http.Client{Timeout: defaultQuoteTimeout}
	}
	return &QuotePricer{baseURL: baseURL, client: client}
}

// GetPrice fetches the current market price for the pair.
func (p *QuotePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s-%s", p.baseURL, pair.From, pair.To)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "build quote request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "fetch quote")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("quote endpoint returned status %d for %s", resp.StatusCode, pair.String())
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "decode quote response")
	}
	if len(parsed.Chart.Result) == 0 {
		return decimal.Decimal{}, fmt.Errorf("quote endpoint returned no result for %s", pair.String())
	}

	return parsed.Chart.Result[0].Meta.RegularMarketPrice, nil
}
