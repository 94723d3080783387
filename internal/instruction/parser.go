package instruction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Parse converts raw JSON bytes plus a kind string into a typed
// Instruction. The ingestion shell validates, parses, and converts raw
// instructions before handing them to the engine.
func Parse(data []byte, kind string) (Instruction, error) {
	switch kind {
	case "InitPool":
		return parseInitPool(data)
	case "PausePool":
		i := &PausePool{}
		return i, parsePoolOnly(data, kind, &i.Header, &i.Pool)
	case "ResumePool":
		i := &ResumePool{}
		return i, parsePoolOnly(data, kind, &i.Header, &i.Pool)
	case "ClosePool":
		i := &ClosePool{}
		return i, parsePoolOnly(data, kind, &i.Header, &i.Pool)
	case "SetFees":
		return parseSetFees(data)
	case "AddManager":
		i := &AddManager{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Manager)
	case "RemoveManager":
		i := &RemoveManager{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Manager)
	case "AddLiquidator":
		i := &AddLiquidator{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Liquidator)
	case "RemoveLiquidator":
		i := &RemoveLiquidator{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Liquidator)
	case "AddToWhitelist":
		return parseAddToWhitelist(data)
	case "RemoveFromWhitelist":
		i := &RemoveFromWhitelist{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Token)
	case "BlockUser":
		i := &BlockUser{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Wallet)
	case "UnblockUser":
		i := &UnblockUser{}
		return i, parseWalletOnly(data, kind, &i.Header, &i.Wallet)
	case "InitOracle":
		return parseInitOracle(data)
	case "CloseOracle":
		i := &CloseOracle{}
		h, err := parseHeaderOnly(data, kind)
		if err != nil {
			return nil, err
		}
		i.Header = h
		return i, nil
	case "DepositStake":
		return parseDepositStake(data)
	case "DepositLP":
		return parseDepositLP(data)
	case "MintOmnisol":
		return parseMintOmnisol(data)
	case "BurnOmnisol":
		return parseBurnOmnisol(data)
	case "WithdrawStake":
		return parseWithdrawStake(data)
	case "WithdrawLPTokens":
		return parseWithdrawLPTokens(data)
	case "LiquidateCollateral":
		return parseLiquidateCollateral(data)
	case "UpdateOracleInfo":
		return parseUpdateOracleInfo(data)
	default:
		return nil, fmt.Errorf("unknown instruction kind: %s", kind)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type headerJSON struct {
	InstructionID string `json:"instruction_id"`
	Authority     string `json:"authority"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func (j headerJSON) toHeader(kind string) (Header, error) {
	id, err := uuid.Parse(j.InstructionID)
	if err != nil {
		return Header{}, fmt.Errorf("parse %s instruction_id: %w", kind, err)
	}
	authority, err := uuid.Parse(j.Authority)
	if err != nil {
		return Header{}, fmt.Errorf("parse %s authority: %w", kind, err)
	}
	return Header{
		ID:        id,
		Authority: authority,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseHeaderOnly(data []byte, kind string) (Header, error) {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Header{}, fmt.Errorf("parse %s: %w", kind, err)
	}
	return j.toHeader(kind)
}

func parsePoolOnly(data []byte, kind string, h *Header, pool *uuid.UUID) error {
	var j struct {
		headerJSON
		Pool string `json:"pool"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("parse %s: %w", kind, err)
	}
	hdr, err := j.toHeader(kind)
	if err != nil {
		return err
	}
	p, err := uuid.Parse(j.Pool)
	if err != nil {
		return fmt.Errorf("parse %s pool: %w", kind, err)
	}
	*h = hdr
	*pool = p
	return nil
}

func parseWalletOnly(data []byte, kind string, h *Header, wallet *uuid.UUID) error {
	var j struct {
		headerJSON
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("parse %s: %w", kind, err)
	}
	hdr, err := j.toHeader(kind)
	if err != nil {
		return err
	}
	w, err := uuid.Parse(j.Target)
	if err != nil {
		return fmt.Errorf("parse %s target: %w", kind, err)
	}
	*h = hdr
	*wallet = w
	return nil
}

func parseInitPool(data []byte) (*InitPool, error) {
	var j struct {
		headerJSON
		Pool        string `json:"pool"`
		PoolMint    string `json:"pool_mint"`
		StakeSource string `json:"stake_source"`
		FeeReceiver string `json:"fee_receiver"`
		MinDeposit  uint64 `json:"min_deposit"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitPool: %w", err)
	}
	h, err := j.toHeader("InitPool")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	mint, err := uuid.Parse(j.PoolMint)
	if err != nil {
		return nil, fmt.Errorf("parse pool_mint: %w", err)
	}
	source, err := uuid.Parse(j.StakeSource)
	if err != nil {
		return nil, fmt.Errorf("parse stake_source: %w", err)
	}
	receiver, err := uuid.Parse(j.FeeReceiver)
	if err != nil {
		return nil, fmt.Errorf("parse fee_receiver: %w", err)
	}
	return &InitPool{
		Header:      h,
		Pool:        pool,
		PoolMint:    mint,
		StakeSource: source,
		FeeReceiver: receiver,
		MinDeposit:  j.MinDeposit,
	}, nil
}

func parseSetFees(data []byte) (*SetFees, error) {
	var j struct {
		headerJSON
		Pool           string `json:"pool"`
		DepositFeeBps  uint64 `json:"deposit_fee_bps"`
		MintFeeBps     uint64 `json:"mint_fee_bps"`
		WithdrawFeeBps uint64 `json:"withdraw_fee_bps"`
		StorageFeeBps  uint64 `json:"storage_fee_bps"`
		MinDeposit     uint64 `json:"min_deposit"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetFees: %w", err)
	}
	h, err := j.toHeader("SetFees")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	return &SetFees{
		Header:         h,
		Pool:           pool,
		DepositFeeBps:  j.DepositFeeBps,
		MintFeeBps:     j.MintFeeBps,
		WithdrawFeeBps: j.WithdrawFeeBps,
		StorageFeeBps:  j.StorageFeeBps,
		MinDeposit:     j.MinDeposit,
	}, nil
}

func parseAddToWhitelist(data []byte) (*AddToWhitelist, error) {
	var j struct {
		headerJSON
		Token             string `json:"token"`
		StakingPool       string `json:"staking_pool"`
		StakingPoolProg   string `json:"staking_pool_prog"`
		ReserveStake      string `json:"reserve_stake"`
		ReserveBalance    uint64 `json:"reserve_balance"`
		ManagerFeeAccount string `json:"manager_fee_account"`
		Validators        []struct {
			StakeAccount string `json:"stake_account"`
			ActiveStake  uint64 `json:"active_stake"`
		} `json:"validators"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AddToWhitelist: %w", err)
	}
	h, err := j.toHeader("AddToWhitelist")
	if err != nil {
		return nil, err
	}
	token, err := uuid.Parse(j.Token)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	stakingPool, err := uuid.Parse(j.StakingPool)
	if err != nil {
		return nil, fmt.Errorf("parse staking_pool: %w", err)
	}
	prog, err := uuid.Parse(j.StakingPoolProg)
	if err != nil {
		return nil, fmt.Errorf("parse staking_pool_prog: %w", err)
	}
	reserve, err := uuid.Parse(j.ReserveStake)
	if err != nil {
		return nil, fmt.Errorf("parse reserve_stake: %w", err)
	}
	feeAcct, err := uuid.Parse(j.ManagerFeeAccount)
	if err != nil {
		return nil, fmt.Errorf("parse manager_fee_account: %w", err)
	}
	out := &AddToWhitelist{
		Header:            h,
		Token:             token,
		StakingPool:       stakingPool,
		StakingPoolProg:   prog,
		ReserveStake:      reserve,
		ReserveBalance:    j.ReserveBalance,
		ManagerFeeAccount: feeAcct,
	}
	for _, v := range j.Validators {
		acc, err := uuid.Parse(v.StakeAccount)
		if err != nil {
			return nil, fmt.Errorf("parse validator stake_account: %w", err)
		}
		out.Validators = append(out.Validators, ValidatorStakeInfo{
			StakeAccount: acc,
			ActiveStake:  v.ActiveStake,
		})
	}
	return out, nil
}

func parseInitOracle(data []byte) (*InitOracle, error) {
	var j struct {
		headerJSON
		OracleAuthority string `json:"oracle_authority"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitOracle: %w", err)
	}
	h, err := j.toHeader("InitOracle")
	if err != nil {
		return nil, err
	}
	auth, err := uuid.Parse(j.OracleAuthority)
	if err != nil {
		return nil, fmt.Errorf("parse oracle_authority: %w", err)
	}
	return &InitOracle{Header: h, OracleAuthority: auth}, nil
}

func parseDepositStake(data []byte) (*DepositStake, error) {
	var j struct {
		headerJSON
		Pool            string `json:"pool"`
		StakeSource     string `json:"stake_source"`
		SplitAccount    string `json:"split_account"`
		Amount          uint64 `json:"amount"`
		StakeDelegation uint64 `json:"stake_delegation"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositStake: %w", err)
	}
	h, err := j.toHeader("DepositStake")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	source, err := uuid.Parse(j.StakeSource)
	if err != nil {
		return nil, fmt.Errorf("parse stake_source: %w", err)
	}
	split, err := uuid.Parse(j.SplitAccount)
	if err != nil {
		return nil, fmt.Errorf("parse split_account: %w", err)
	}
	return &DepositStake{
		Header:          h,
		Pool:            pool,
		StakeSource:     source,
		SplitAccount:    split,
		Amount:          j.Amount,
		StakeDelegation: j.StakeDelegation,
	}, nil
}

func parseDepositLP(data []byte) (*DepositLP, error) {
	var j struct {
		headerJSON
		Pool   string `json:"pool"`
		Token  string `json:"token"`
		Source string `json:"source"`
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositLP: %w", err)
	}
	h, err := j.toHeader("DepositLP")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	token, err := uuid.Parse(j.Token)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	source, err := uuid.Parse(j.Source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	return &DepositLP{Header: h, Pool: pool, Token: token, Source: source, Amount: j.Amount}, nil
}

func parseMintOmnisol(data []byte) (*MintOmnisol, error) {
	var j struct {
		headerJSON
		Pool       string `json:"pool"`
		Collateral string `json:"collateral"`
		Amount     uint64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MintOmnisol: %w", err)
	}
	h, err := j.toHeader("MintOmnisol")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	collateral, err := uuid.Parse(j.Collateral)
	if err != nil {
		return nil, fmt.Errorf("parse collateral: %w", err)
	}
	return &MintOmnisol{Header: h, Pool: pool, Collateral: collateral, Amount: j.Amount}, nil
}

func parseBurnOmnisol(data []byte) (*BurnOmnisol, error) {
	var j struct {
		headerJSON
		Pool   string `json:"pool"`
		Amount uint64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BurnOmnisol: %w", err)
	}
	h, err := j.toHeader("BurnOmnisol")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	return &BurnOmnisol{Header: h, Pool: pool, Amount: j.Amount}, nil
}

func parseWithdrawStake(data []byte) (*WithdrawStake, error) {
	var j struct {
		headerJSON
		Pool       string `json:"pool"`
		Collateral string `json:"collateral"`
		Amount     uint64 `json:"amount"`
		WithBurn   bool   `json:"with_burn"`
		WithMerge  bool   `json:"with_merge"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawStake: %w", err)
	}
	h, err := j.toHeader("WithdrawStake")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	collateral, err := uuid.Parse(j.Collateral)
	if err != nil {
		return nil, fmt.Errorf("parse collateral: %w", err)
	}
	return &WithdrawStake{
		Header:     h,
		Pool:       pool,
		Collateral: collateral,
		Amount:     j.Amount,
		WithBurn:   j.WithBurn,
		WithMerge:  j.WithMerge,
	}, nil
}

func parseWithdrawLPTokens(data []byte) (*WithdrawLPTokens, error) {
	var j struct {
		headerJSON
		Pool       string `json:"pool"`
		Collateral string `json:"collateral"`
		Amount     uint64 `json:"amount"`
		WithBurn   bool   `json:"with_burn"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawLPTokens: %w", err)
	}
	h, err := j.toHeader("WithdrawLPTokens")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	collateral, err := uuid.Parse(j.Collateral)
	if err != nil {
		return nil, fmt.Errorf("parse collateral: %w", err)
	}
	return &WithdrawLPTokens{
		Header:     h,
		Pool:       pool,
		Collateral: collateral,
		Amount:     j.Amount,
		WithBurn:   j.WithBurn,
	}, nil
}

func parseLiquidateCollateral(data []byte) (*LiquidateCollateral, error) {
	var j struct {
		headerJSON
		Pool         string `json:"pool"`
		Collateral   string `json:"collateral"`
		WithdrawInfo string `json:"withdraw_info"`
		Amount       uint64 `json:"amount"`
		SplitAccount string `json:"split_account"`
		Accounts     []struct {
			Address  string `json:"address"`
			Signer   bool   `json:"signer"`
			Writable bool   `json:"writable"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidateCollateral: %w", err)
	}
	h, err := j.toHeader("LiquidateCollateral")
	if err != nil {
		return nil, err
	}
	pool, err := uuid.Parse(j.Pool)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	collateral, err := uuid.Parse(j.Collateral)
	if err != nil {
		return nil, fmt.Errorf("parse collateral: %w", err)
	}
	withdrawInfo, err := uuid.Parse(j.WithdrawInfo)
	if err != nil {
		return nil, fmt.Errorf("parse withdraw_info: %w", err)
	}
	split, err := uuid.Parse(j.SplitAccount)
	if err != nil {
		return nil, fmt.Errorf("parse split_account: %w", err)
	}
	out := &LiquidateCollateral{
		Header:       h,
		Pool:         pool,
		Collateral:   collateral,
		WithdrawInfo: withdrawInfo,
		Amount:       j.Amount,
		SplitAccount: split,
	}
	for _, a := range j.Accounts {
		addr, err := uuid.Parse(a.Address)
		if err != nil {
			return nil, fmt.Errorf("parse account address: %w", err)
		}
		out.Accounts = append(out.Accounts, AccountMeta{
			Address:  addr,
			Signer:   a.Signer,
			Writable: a.Writable,
		})
	}
	return out, nil
}

func parseUpdateOracleInfo(data []byte) (*UpdateOracleInfo, error) {
	var j struct {
		headerJSON
		Addresses []string `json:"addresses"`
		Values    []uint64 `json:"values"`
		Clear     bool     `json:"clear"`
	}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UpdateOracleInfo: %w", err)
	}
	h, err := j.toHeader("UpdateOracleInfo")
	if err != nil {
		return nil, err
	}
	out := &UpdateOracleInfo{Header: h, Values: j.Values, Clear: j.Clear}
	for _, a := range j.Addresses {
		addr, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("parse queue address: %w", err)
		}
		out.Addresses = append(out.Addresses, addr)
	}
	return out, nil
}
