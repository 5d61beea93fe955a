package api

import (
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	apitypes "github.com/openalpha/epoch-vault/api/types"
	"github.com/openalpha/epoch-vault/api/websocket"
	"github.com/openalpha/epoch-vault/metrics"
	"github.com/openalpha/epoch-vault/pkg/memstore"
	strategykeeper "github.com/openalpha/epoch-vault/x/strategy/keeper"
	strategytypes "github.com/openalpha/epoch-vault/x/strategy/types"
	vaultkeeper "github.com/openalpha/epoch-vault/x/vault/keeper"
	vaulttypes "github.com/openalpha/epoch-vault/x/vault/types"
)

// EventPublisher receives the events of every committed operation
type EventPublisher interface {
	PublishEvent(ev websocket.PoolEvent)
}

// KeeperService runs the vault and strategy keepers on an in-memory store.
// One mutex serializes every call, so concurrent requests settle in arrival
// order the way transactions in a block would.
type KeeperService struct {
	mu sync.Mutex

	env           *memstore.Env
	vault         *vaultkeeper.Keeper
	vaultQuery    *vaultkeeper.QueryServer
	strategy      *strategykeeper.Keeper
	strategyQuery *strategykeeper.QueryServer

	clock     func() time.Time
	publisher EventPublisher
	logger    log.Logger
}

var _ apitypes.VaultService = (*KeeperService)(nil)

// NewKeeperService mounts both modules and creates the configured pools and
// strategies. A nil clock means wall time.
func NewKeeperService(
	cfg *Config,
	clock func() time.Time,
	publisher EventPublisher,
	collector *metrics.Collector,
	logger log.Logger,
) (*KeeperService, error) {
	if clock == nil {
		clock = time.Now
	}

	env, err := memstore.NewEnv(clock().UTC(), vaulttypes.StoreKey, strategytypes.StoreKey)
	if err != nil {
		return nil, err
	}

	authority := cfg.Authority
	if authority == "" {
		authority = sdk.AccAddress(address.Module("vault-api", []byte("authority"))).String()
	}

	vk := vaultkeeper.NewKeeper(env.Keys[vaulttypes.StoreKey], env.Bank, authority, logger)
	vk.SetMetrics(collector)
	sk := strategykeeper.NewKeeper(env.Keys[strategytypes.StoreKey], vk, env.Bank, authority, logger)
	sk.SetMetrics(collector)

	s := &KeeperService{
		env:           env,
		vault:         vk,
		vaultQuery:    vaultkeeper.NewQueryServerImpl(vk),
		strategy:      sk,
		strategyQuery: strategykeeper.NewQueryServerImpl(sk),
		clock:         clock,
		publisher:     publisher,
		logger:        logger.With("component", "vault-service"),
	}

	if err := s.bootstrap(cfg, authority); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *KeeperService) bootstrap(cfg *Config, authority string) error {
	return s.exec(func(ctx sdk.Context) error {
		for _, spec := range cfg.Pools {
			poolCfg, err := spec.PoolConfig(authority)
			if err != nil {
				return fmt.Errorf("pool %s: %w", spec.ID, err)
			}
			if _, err := s.vault.CreatePool(ctx, authority, poolCfg); err != nil {
				return fmt.Errorf("create pool %s: %w", spec.ID, err)
			}

			funding, err := spec.Funding()
			if err != nil {
				return fmt.Errorf("pool %s: %w", spec.ID, err)
			}
			if !funding.IsPositive() {
				continue
			}
			treasury, err := sdk.AccAddressFromBech32(poolCfg.Treasury)
			if err != nil {
				return fmt.Errorf("pool %s treasury: %w", spec.ID, err)
			}
			if err := s.env.Bank.MintCoins(ctx, treasury, sdk.NewCoins(sdk.NewCoin(poolCfg.Denom, funding))); err != nil {
				return err
			}
			if err := s.vault.ApproveTreasury(ctx, poolCfg.Treasury, spec.ID, funding); err != nil {
				return fmt.Errorf("approve treasury of %s: %w", spec.ID, err)
			}
		}

		for _, spec := range cfg.Strategies {
			st := strategytypes.Strategy{
				ID:          spec.ID,
				Custody:     spec.Custody,
				Description: spec.Description,
				Enabled:     true,
			}
			if _, err := s.strategy.RegisterStrategy(ctx, authority, st); err != nil {
				return fmt.Errorf("register strategy %s: %w", spec.ID, err)
			}
			for _, agent := range spec.Agents {
				for _, sel := range []strategytypes.Selector{strategytypes.SelectorAllocate, strategytypes.SelectorDeallocate} {
					if err := s.strategy.GrantCapability(ctx, authority, agent, spec.ID, sel, spec.MinInterval); err != nil {
						return fmt.Errorf("grant %s on %s: %w", agent, spec.ID, err)
					}
				}
			}
		}

		s.logger.Info("bootstrapped vault state", "pools", len(cfg.Pools), "strategies", len(cfg.Strategies))
		return nil
	})
}

// tick moves block time up to the clock and opens a new height
func (s *KeeperService) tick() sdk.Context {
	if d := s.clock().UTC().Sub(s.env.Ctx.BlockTime()); d > 0 {
		return s.env.Advance(d)
	}
	return s.env.Ctx
}

// exec runs one state transition, then the end-block checks, then relays
// the emitted events
func (s *KeeperService) exec(fn func(ctx sdk.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.tick()
	err := fn(ctx)
	evs := s.env.Events()
	if err != nil {
		return err
	}

	if err := s.vault.EndBlocker(s.env.Ctx); err != nil {
		s.logger.Error("end block checks failed", "height", ctx.BlockHeight(), "error", err)
	}
	s.publish(ctx, evs)
	return nil
}

// view runs a read at the current clock time
func (s *KeeperService) view(fn func(ctx sdk.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.tick())
}

func (s *KeeperService) publish(ctx sdk.Context, evs sdk.Events) {
	if s.publisher == nil {
		return
	}
	for _, ev := range evs {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		s.publisher.PublishEvent(websocket.PoolEvent{
			Type:       ev.Type,
			PoolID:     attrs[vaulttypes.AttributeKeyPoolID],
			Attributes: attrs,
			Height:     ctx.BlockHeight(),
			Time:       ctx.BlockTime(),
		})
	}
}

// Status returns the current height and block time
func (s *KeeperService) Status() (int64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Ctx.BlockHeight(), s.env.Ctx.BlockTime()
}

// GetPools returns a page of pools
func (s *KeeperService) GetPools(offset, limit uint64) (pools []*vaulttypes.Pool, total uint64, err error) {
	err = s.view(func(ctx sdk.Context) error {
		pools, total, err = s.vaultQuery.Pools(ctx, offset, limit)
		return err
	})
	return pools, total, err
}

// GetPool returns the stored pool record
func (s *KeeperService) GetPool(poolID string) (pool *vaulttypes.Pool, err error) {
	err = s.view(func(ctx sdk.Context) error {
		pool, err = s.vaultQuery.Pool(ctx, poolID)
		return err
	})
	return pool, err
}

// GetPoolStatus returns the derived views of a pool
func (s *KeeperService) GetPoolStatus(poolID string) (status *vaulttypes.PoolStatus, err error) {
	err = s.view(func(ctx sdk.Context) error {
		status, err = s.vaultQuery.PoolStatus(ctx, poolID)
		return err
	})
	return status, err
}

// GetAllowance returns the treasury allowance next to the treasury balance
func (s *KeeperService) GetAllowance(poolID string) (info *apitypes.AllowanceInfo, err error) {
	err = s.view(func(ctx sdk.Context) error {
		pool, err := s.vaultQuery.Pool(ctx, poolID)
		if err != nil {
			return err
		}
		amount, err := s.vaultQuery.TreasuryAllowance(ctx, poolID)
		if err != nil {
			return err
		}
		treasury, err := sdk.AccAddressFromBech32(pool.Treasury)
		if err != nil {
			return errorsmod.Wrap(sdkerrors.ErrInvalidAddress, err.Error())
		}
		info = &apitypes.AllowanceInfo{
			PoolID:   poolID,
			Treasury: pool.Treasury,
			Amount:   amount,
			Balance:  s.env.Bank.GetBalance(ctx, treasury, pool.Denom).Amount,
		}
		return nil
	})
	return info, err
}

// GetEpochs returns the finished epochs of a pool
func (s *KeeperService) GetEpochs(poolID string) (records []vaulttypes.EpochRecord, err error) {
	err = s.view(func(ctx sdk.Context) error {
		records, err = s.vaultQuery.EpochHistory(ctx, poolID)
		return err
	})
	return records, err
}

// GetAllocations returns what a pool has lent to strategies
func (s *KeeperService) GetAllocations(poolID string) (allocs []strategytypes.Allocation, err error) {
	err = s.view(func(ctx sdk.Context) error {
		if _, err := s.vaultQuery.Pool(ctx, poolID); err != nil {
			return err
		}
		allocs, err = s.strategyQuery.PoolAllocations(ctx, poolID)
		return err
	})
	return allocs, err
}

// GetAccount returns a depositor position with its wallet balance
func (s *KeeperService) GetAccount(poolID, depositor string) (info *apitypes.AccountInfo, err error) {
	addr, err := sdk.AccAddressFromBech32(depositor)
	if err != nil {
		return nil, errorsmod.Wrap(sdkerrors.ErrInvalidAddress, err.Error())
	}

	err = s.view(func(ctx sdk.Context) error {
		pool, err := s.vaultQuery.Pool(ctx, poolID)
		if err != nil {
			return err
		}
		acc, err := s.vaultQuery.Account(ctx, poolID, depositor)
		if err != nil {
			return err
		}
		canWithdraw, err := s.vaultQuery.CanWithdraw(ctx, poolID, depositor)
		if err != nil {
			return err
		}
		info = &apitypes.AccountInfo{
			DepositorAccount: *acc,
			CanWithdraw:      canWithdraw,
			Balance:          s.env.Bank.GetBalance(ctx, addr, pool.Denom).Amount.String(),
		}
		return nil
	})
	return info, err
}

// PreviewWithdraw returns what a full exit would pay now
func (s *KeeperService) PreviewWithdraw(poolID, depositor string) (preview *vaulttypes.WithdrawPreview, err error) {
	err = s.view(func(ctx sdk.Context) error {
		p, err := s.vaultQuery.PreviewWithdraw(ctx, poolID, depositor)
		if err != nil {
			return err
		}
		preview = &p
		return nil
	})
	return preview, err
}

// Deposit transfers amount from depositor into the pool
func (s *KeeperService) Deposit(poolID, depositor string, amount math.Int) (receipt *vaulttypes.DepositReceipt, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		receipt, err = s.vault.Deposit(ctx, depositor, poolID, amount)
		return err
	})
	return receipt, err
}

// Withdraw burns shares and pays out their value
func (s *KeeperService) Withdraw(poolID, withdrawer string, shares math.Int) (receipt *vaulttypes.WithdrawReceipt, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		receipt, err = s.vault.Withdraw(ctx, withdrawer, poolID, shares)
		return err
	})
	return receipt, err
}

// WithdrawAll burns every share of withdrawer
func (s *KeeperService) WithdrawAll(poolID, withdrawer string) (receipt *vaulttypes.WithdrawReceipt, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		receipt, err = s.vault.WithdrawAll(ctx, withdrawer, poolID)
		return err
	})
	return receipt, err
}

// Deploy snapshots a capped pool and starts accrual
func (s *KeeperService) Deploy(poolID string) (deployed math.Int, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		deployed, err = s.vault.Deploy(ctx, poolID)
		return err
	})
	return deployed, err
}

// Allocate moves idle escrow into a strategy's custody
func (s *KeeperService) Allocate(poolID, agent, strategyID string, amount math.Int) (allocated math.Int, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		allocated, err = s.strategy.Allocate(ctx, agent, poolID, strategyID, amount)
		return err
	})
	return allocated, err
}

// Deallocate returns assets from a strategy's custody to the escrow
func (s *KeeperService) Deallocate(poolID, agent, strategyID string, amount math.Int) (allocated math.Int, err error) {
	err = s.exec(func(ctx sdk.Context) error {
		allocated, err = s.strategy.Deallocate(ctx, agent, poolID, strategyID, amount)
		return err
	})
	return allocated, err
}

// Faucet mints test funds and returns the new balance
func (s *KeeperService) Faucet(address, denom string, amount math.Int) (balance math.Int, err error) {
	addr, err := sdk.AccAddressFromBech32(address)
	if err != nil {
		return math.ZeroInt(), errorsmod.Wrap(sdkerrors.ErrInvalidAddress, err.Error())
	}
	if err := sdk.ValidateDenom(denom); err != nil {
		return math.ZeroInt(), errorsmod.Wrap(sdkerrors.ErrInvalidCoins, err.Error())
	}
	if !amount.IsPositive() {
		return math.ZeroInt(), errorsmod.Wrap(sdkerrors.ErrInvalidCoins, "amount must be positive")
	}

	err = s.exec(func(ctx sdk.Context) error {
		if err := s.env.Bank.MintCoins(ctx, addr, sdk.NewCoins(sdk.NewCoin(denom, amount))); err != nil {
			return err
		}
		balance = s.env.Bank.GetBalance(ctx, addr, denom).Amount
		return nil
	})
	return balance, err
}
