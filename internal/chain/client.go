// Package chain is the worker-side client of the ledger service. Reads go
// against the query API over HTTP JSON; instruction submission goes
// through NATS, the same path user-facing producers use.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mfactory-lab/omnisol/internal/observability"
	"github.com/mfactory-lab/omnisol/internal/query"
	"github.com/mfactory-lab/omnisol/internal/signer"
	"github.com/mfactory-lab/omnisol/internal/state"
)

// InstructionSubjectPrefix is where workers publish instructions; the
// ingestion shell subscribes to the matching wildcard.
const InstructionSubjectPrefix = "omnisol.instructions."

// Client is the ledger view the oracle and liquidator workers run
// against. A fake implementation in testutil backs worker tests.
type Client interface {
	ListUsers(ctx context.Context) ([]state.User, error)
	ListCollaterals(ctx context.Context) ([]state.Collateral, error)
	ListWithdrawRequests(ctx context.Context) ([]state.WithdrawInfo, error)
	GetPool(ctx context.Context, addr uuid.UUID) (state.Pool, bool, error)
	GetUser(ctx context.Context, wallet uuid.UUID) (state.User, bool, error)
	GetOracle(ctx context.Context) (state.Oracle, bool, error)
	GetWhitelistEntry(ctx context.Context, token uuid.UUID) (state.WhitelistEntry, bool, error)
	GetStakePool(ctx context.Context, addr uuid.UUID) (state.StakePool, bool, error)

	// Submit publishes one instruction. The body carries the
	// kind-specific fields; the client fills the header from its signer.
	Submit(ctx context.Context, kind string, body map[string]any) error
}

// HTTPClient implements Client against a running ledger node.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	nc      *nats.Conn
	signer  *signer.Signer
	log     zerolog.Logger
}

func NewHTTPClient(baseURL string, nc *nats.Conn, sig *signer.Signer) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		nc:      nc,
		signer:  sig,
		log:     observability.NewLogger("chain-client"),
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context) ([]state.User, error) {
	var resp struct {
		Users []query.UserResponse `json:"users"`
	}
	if _, err := c.get(ctx, "/v1/users", &resp); err != nil {
		return nil, err
	}
	out := make([]state.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, userFromResponse(u))
	}
	return out, nil
}

func (c *HTTPClient) ListCollaterals(ctx context.Context) ([]state.Collateral, error) {
	var resp struct {
		Collaterals []query.CollateralResponse `json:"collaterals"`
	}
	if _, err := c.get(ctx, "/v1/collaterals", &resp); err != nil {
		return nil, err
	}
	out := make([]state.Collateral, 0, len(resp.Collaterals))
	for _, col := range resp.Collaterals {
		out = append(out, collateralFromResponse(col))
	}
	return out, nil
}

func (c *HTTPClient) ListWithdrawRequests(ctx context.Context) ([]state.WithdrawInfo, error) {
	var resp struct {
		Requests []query.WithdrawRequestResponse `json:"requests"`
	}
	if _, err := c.get(ctx, "/v1/withdraw-requests", &resp); err != nil {
		return nil, err
	}
	out := make([]state.WithdrawInfo, 0, len(resp.Requests))
	for _, w := range resp.Requests {
		out = append(out, state.WithdrawInfo{
			Address:   w.Address,
			Authority: w.Authority,
			Amount:    w.Amount,
			CreatedAt: time.UnixMicro(w.CreatedAtUs),
		})
	}
	return out, nil
}

func (c *HTTPClient) GetPool(ctx context.Context, addr uuid.UUID) (state.Pool, bool, error) {
	var resp query.PoolResponse
	ok, err := c.get(ctx, "/v1/pools/"+addr.String(), &resp)
	if err != nil || !ok {
		return state.Pool{}, ok, err
	}
	return state.Pool{
		Address:        resp.Address,
		Authority:      resp.Authority,
		PoolMint:       resp.PoolMint,
		StakeSource:    resp.StakeSource,
		FeeReceiver:    resp.FeeReceiver,
		DepositAmount:  resp.DepositAmount,
		Collaterals:    resp.Collaterals,
		Active:         resp.Active,
		DepositFeeBps:  resp.DepositFeeBps,
		MintFeeBps:     resp.MintFeeBps,
		WithdrawFeeBps: resp.WithdrawFeeBps,
		StorageFeeBps:  resp.StorageFeeBps,
		MinDeposit:     resp.MinDeposit,
	}, true, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, wallet uuid.UUID) (state.User, bool, error) {
	var resp query.UserResponse
	ok, err := c.get(ctx, "/v1/users/"+wallet.String(), &resp)
	if err != nil || !ok {
		return state.User{}, ok, err
	}
	return userFromResponse(resp), true, nil
}

func (c *HTTPClient) GetOracle(ctx context.Context) (state.Oracle, bool, error) {
	var resp query.OracleResponse
	ok, err := c.get(ctx, "/v1/oracle", &resp)
	if err != nil || !ok {
		return state.Oracle{}, ok, err
	}
	queue := make([]state.QueueMember, 0, len(resp.Queue))
	for _, m := range resp.Queue {
		queue = append(queue, state.QueueMember{Collateral: m.Collateral, Amount: m.Amount})
	}
	return state.Oracle{Authority: resp.Authority, PriorityQueue: queue}, true, nil
}

func (c *HTTPClient) GetWhitelistEntry(ctx context.Context, token uuid.UUID) (state.WhitelistEntry, bool, error) {
	var resp struct {
		Whitelist []query.WhitelistResponse `json:"whitelist"`
	}
	if _, err := c.get(ctx, "/v1/whitelist", &resp); err != nil {
		return state.WhitelistEntry{}, false, err
	}
	for _, w := range resp.Whitelist {
		if w.Token == token {
			return state.WhitelistEntry{
				Token:           w.Token,
				StakingPool:     w.StakingPool,
				StakingPoolProg: w.StakingPoolProg,
			}, true, nil
		}
	}
	return state.WhitelistEntry{}, false, nil
}

func (c *HTTPClient) GetStakePool(ctx context.Context, addr uuid.UUID) (state.StakePool, bool, error) {
	var resp query.StakePoolResponse
	ok, err := c.get(ctx, "/v1/stake-pools/"+addr.String(), &resp)
	if err != nil || !ok {
		return state.StakePool{}, ok, err
	}
	validators := make([]state.ValidatorStake, 0, len(resp.Validators))
	for _, v := range resp.Validators {
		validators = append(validators, state.ValidatorStake{
			StakeAccount: v.StakeAccount,
			ActiveStake:  v.ActiveStake,
		})
	}
	return state.StakePool{
		Address:           resp.Address,
		Mint:              resp.Mint,
		ReserveStake:      resp.ReserveStake,
		ReserveBalance:    resp.ReserveBalance,
		ManagerFeeAccount: resp.ManagerFeeAccount,
		Validators:        validators,
	}, true, nil
}

// Submit fills the instruction header from the signer and publishes the
// wire JSON. The flush makes submission synchronous so a worker observes
// its own writes in order.
func (c *HTTPClient) Submit(ctx context.Context, kind string, body map[string]any) error {
	msg := make(map[string]any, len(body)+4)
	for k, v := range body {
		msg[k] = v
	}
	msg["instruction_id"] = uuid.New().String()
	msg["authority"] = c.signer.Wallet().String()
	msg["sequence"] = c.signer.NextSequence()
	msg["timestamp_us"] = time.Now().UnixMicro()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := c.nc.Publish(InstructionSubjectPrefix+kind, data); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", kind, err)
	}
	c.log.Debug().Str("kind", kind).Msg("instruction submitted")
	return nil
}

func userFromResponse(u query.UserResponse) state.User {
	return state.User{
		Wallet:            u.Wallet,
		Rate:              u.Rate,
		Blocked:           u.Blocked,
		RequestsAmount:    u.RequestsAmount,
		LastWithdrawIndex: u.LastWithdrawIndex,
		Registered:        true,
	}
}

func collateralFromResponse(c query.CollateralResponse) state.Collateral {
	return state.Collateral{
		Address:          c.Address,
		User:             c.User,
		Pool:             c.Pool,
		StakeSource:      c.StakeSource,
		DelegatedStake:   c.DelegatedStake,
		DelegationStake:  c.DelegationStake,
		Amount:           c.Amount,
		LiquidatedAmount: c.LiquidatedAmount,
		CreatedAt:        time.UnixMicro(c.CreatedAtUs),
		CreationEpoch:    c.CreationEpoch,
		IsNative:         c.IsNative,
	}
}
