package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

const defaultHTTPTimeout = 30 * time.Second

var (
	ErrAlreadyVerified  = errors.New("contract source code already verified")
	ErrRateLimited      = errors.New("explorer rate limit reached")
	ErrNotIndexed       = errors.New("explorer has not indexed the contract yet")
	ErrBytecodeMismatch = errors.New("compiled bytecode does not match deployed bytecode")
	ErrExplorer         = errors.New("explorer rejected the request")
)

type (
	// Client talks to an Etherscan-compatible explorer API
	Client struct {
		apiURL     string
		apiKey     string
		chainID    uint64
		httpClient *http.Client
		logger     *slog.Logger
	}

	ClientOption func(*Client)

	// SourceSubmission is the form body of a verifysourcecode call.
	SourceSubmission struct {
		ContractAddress      common.Address
		StandardJSONInput    string
		ContractName         string
		CompilerVersion      string
		ConstructorArguments []byte
	}

	Status int

	apiResponse struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}

	sourceCodeEntry struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
	}
)

const (
	StatusPending Status = iota
	StatusVerified
	StatusAlreadyVerified
)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an explorer client. chainID is sent along for multi-chain
// APIs and ignored by single-chain ones.
func NewClient(apiURL, apiKey string, chainID uint64, opts ...ClientOption) *Client {
	c := &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger.Named("explorer_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsVerified reports whether the explorer already shows source for address.
func (c *Client) IsVerified(ctx context.Context, address common.Address) (bool, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address.Hex())

	resp, err := c.do(ctx, http.MethodGet, params)
	if err != nil {
		return false, err
	}
	if resp.Status != "1" {
		return false, classify(resultText(resp))
	}

	var entries []sourceCodeEntry
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		return false, fmt.Errorf("failed to decode getsourcecode result: %w", err)
	}

	return len(entries) > 0 && entries[0].SourceCode != "", nil
}

// SubmitSource posts a verification job and returns its GUID.
func (c *Client) SubmitSource(ctx context.Context, submission SourceSubmission) (string, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "verifysourcecode")
	params.Set("contractaddress", submission.ContractAddress.Hex())
	params.Set("sourceCode", submission.StandardJSONInput)
	params.Set("codeformat", "solidity-standard-json-input")
	params.Set("contractname", submission.ContractName)
	params.Set("compilerversion", submission.CompilerVersion)
	// Etherscan spells the field this way.
	params.Set("constructorArguements", common.Bytes2Hex(submission.ConstructorArguments))

	resp, err := c.do(ctx, http.MethodPost, params)
	if err != nil {
		return "", err
	}

	result := resultText(resp)
	if resp.Status != "1" {
		return "", classify(result)
	}

	c.logger.With("guid", result).Debug("verification request accepted")

	return result, nil
}

// CheckStatus polls a verification job.
func (c *Client) CheckStatus(ctx context.Context, guid string) (Status, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "checkverifystatus")
	params.Set("guid", guid)

	resp, err := c.do(ctx, http.MethodGet, params)
	if err != nil {
		return StatusPending, err
	}

	result := resultText(resp)
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "pending"):
		return StatusPending, nil
	case strings.Contains(lower, "already verified"):
		return StatusAlreadyVerified, nil
	case strings.HasPrefix(lower, "pass"):
		return StatusVerified, nil
	case resp.Status == "1":
		return StatusVerified, nil
	default:
		return StatusPending, classify(result)
	}
}

func (c *Client) do(ctx context.Context, method string, params url.Values) (apiResponse, error) {
	endpoint, err := url.Parse(c.apiURL)
	if err != nil {
		return apiResponse{}, fmt.Errorf("invalid explorer api url %q: %w", c.apiURL, err)
	}

	query := endpoint.Query()
	if c.chainID != 0 {
		query.Set("chainid", strconv.FormatUint(c.chainID, 10))
	}
	params.Set("apikey", c.apiKey)

	var body io.Reader
	if method == http.MethodGet {
		for key, values := range params {
			query[key] = values
		}
	} else {
		body = strings.NewReader(params.Encode())
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to build explorer request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.With("action", params.Get("action")).Debug("calling explorer api")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("explorer request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return apiResponse{}, ErrRateLimited
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return apiResponse{}, fmt.Errorf("%w: http status %d", ErrExplorer, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return apiResponse{}, fmt.Errorf("failed to decode explorer response: %w", err)
	}

	return resp, nil
}

// resultText returns the result field when it is a string, otherwise the message.
func resultText(resp apiResponse) string {
	var text string
	if err := json.Unmarshal(resp.Result, &text); err == nil && text != "" {
		return text
	}
	return resp.Message
}

// classify maps explorer error text onto the sentinel errors above.
func classify(message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "already verified"):
		return ErrAlreadyVerified
	case strings.Contains(lower, "rate limit"):
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case strings.Contains(lower, "unable to locate contractcode"),
		strings.Contains(lower, "does not have bytecode"):
		return fmt.Errorf("%w: %s", ErrNotIndexed, message)
	case strings.Contains(lower, "unable to verify"),
		strings.Contains(lower, "bytecode"):
		return fmt.Errorf("%w: %s", ErrBytecodeMismatch, message)
	default:
		return fmt.Errorf("%w: %s", ErrExplorer, message)
	}
}

// Retryable reports whether err is worth another attempt after a backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNotIndexed)
}
