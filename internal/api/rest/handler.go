package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alpha-fi/cheddar-nft-minter/internal/api/middleware"
	"github.com/alpha-fi/cheddar-nft-minter/internal/contract"
	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/metrics"
)

// DepositHeader carries the attached deposit in yoctoNEAR as a decimal string
const DepositHeader = "X-Attached-Deposit"

const maxBodyBytes = 1 << 20

// callFunc executes a change method with the authenticated caller identity
type callFunc func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error)

// viewFunc executes a read-only method
type viewFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Handler exposes the contract engine over HTTP. Change methods are
// dispatched by name under /call/:method, views under /view/:method, both
// taking a JSON args object in the request body.
type Handler struct {
	engine *contract.Contract
	calls  map[string]callFunc
	views  map[string]viewFunc
}

// NewHandler creates a new handler around the contract engine
func NewHandler(engine *contract.Contract) *Handler {
	h := &Handler{engine: engine}
	h.registerCalls()
	h.registerViews()
	return h
}

// Call handles POST /call/:method
func (h *Handler) Call(c *gin.Context) {
	method := c.Param("method")
	fn, ok := h.calls[method]
	if !ok {
		respondNotFound(c, fmt.Sprintf("unknown method: %s", method))
		return
	}

	caller, ok := middleware.CallerID(c)
	if !ok {
		respondWithError(c, http.StatusForbidden, ErrCodeForbidden, "Request carries no caller identity", "")
		return
	}

	deposit := domain.NewU128(0)
	if raw := c.GetHeader(DepositHeader); raw != "" {
		parsed, err := domain.ParseU128(raw)
		if err != nil {
			respondBadRequest(c, fmt.Sprintf("invalid %s header", DepositHeader))
			return
		}
		deposit = parsed
	}

	args, err := readArgs(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	metrics.IncCall(method)
	start := time.Now()
	result, err := fn(c.Request.Context(), contract.Call{Caller: caller, Deposit: deposit}, args)
	metrics.ObserveCall(time.Since(start).Seconds())
	if err != nil {
		_, code := contractErrorCode(err)
		metrics.IncCallError(method, string(code))
		respondContractError(c, err)
		return
	}

	h.refreshSupplyGauges(c.Request.Context())

	if result == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// View handles POST /view/:method
func (h *Handler) View(c *gin.Context) {
	method := c.Param("method")
	fn, ok := h.views[method]
	if !ok {
		respondNotFound(c, fmt.Sprintf("unknown method: %s", method))
		return
	}

	args, err := readArgs(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	metrics.IncView(method)
	result, err := fn(c.Request.Context(), args)
	if err != nil {
		respondContractError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	initialized, err := h.engine.Initialized(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "initialized": initialized})
}

func (h *Handler) refreshSupplyGauges(ctx context.Context) {
	if left, err := h.engine.TokensLeft(ctx); err == nil {
		metrics.SetTokensLeft(left)
	}
	if pending, err := h.engine.PendingTransfers(ctx); err == nil {
		metrics.SetPendingTransfers(pending)
	}
}

func readArgs(c *gin.Context) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func decode[T any](args json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(args, &v); err != nil {
		return v, &domain.ValidationError{Field: "args", Reason: err.Error()}
	}
	return v, nil
}

func (h *Handler) registerCalls() {
	h.calls = map[string]callFunc{
		"new": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[contract.InitArgs](args)
			if err != nil {
				return nil, err
			}
			if a.OwnerID == "" {
				a.OwnerID = call.Caller
			}
			return nil, h.engine.New(ctx, a)
		},
		"new_default_meta": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[contract.DefaultMetaInitArgs](args)
			if err != nil {
				return nil, err
			}
			if a.OwnerID == "" {
				a.OwnerID = call.Caller
			}
			return nil, h.engine.NewDefaultMeta(ctx, a)
		},
		"transfer_ownership": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				NewOwner domain.AccountID `json:"new_owner"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.TransferOwnership(ctx, call, a.NewOwner)
		},
		"add_admin": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.AddAdmin(ctx, call, a.AccountID)
		},
		"update_royalties": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Royalties *domain.Royalties `json:"royalties"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.UpdateRoyalties(ctx, call, a.Royalties)
		},
		"update_initial_royalties": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				InitialRoyalties *domain.Royalties `json:"initial_royalties"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.UpdateInitialRoyalties(ctx, call, a.InitialRoyalties)
		},
		"update_allowance": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Allowance *uint32 `json:"allowance"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.UpdateAllowance(ctx, call, a.Allowance)
		},
		"update_uri": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				URI string `json:"uri"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.UpdateURI(ctx, call, a.URI)
		},
		"add_whitelist_accounts": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Accounts  []domain.AccountID `json:"accounts"`
				Allowance *uint32            `json:"allowance"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.AddWhitelistAccounts(ctx, call, a.Accounts, a.Allowance)
		},
		"update_whitelist_accounts": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Accounts          []domain.AccountID `json:"accounts"`
				AllowanceIncrease uint32             `json:"allowance_increase"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.UpdateWhitelistAccounts(ctx, call, a.Accounts, a.AllowanceIncrease)
		},
		"close_sale": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			return nil, h.engine.CloseSale(ctx, call)
		},
		"start_presale": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PresaleStart *domain.TimestampMs `json:"presale_start"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.StartPresale(ctx, call, a.PresaleStart)
		},
		"start_sale": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PublicSaleStart *domain.TimestampMs `json:"public_sale_start"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.StartSale(ctx, call, a.PublicSaleStart)
		},
		"update_price": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Price domain.U128 `json:"price"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.UpdatePrice(ctx, call, a.Price)
		},
		"update_presale_price": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PresalePrice *domain.U128 `json:"presale_price"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.UpdatePresalePrice(ctx, call, a.PresalePrice)
		},
		"nft_mint_one": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				WithCheddar bool `json:"with_cheddar"`
			}](args)
			if err != nil {
				return nil, err
			}
			if a.WithCheddar {
				return h.engine.NftMintOneWithCheddar(ctx, call)
			}
			return h.engine.NftMintOne(ctx, call)
		},
		"nft_mint_many": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Num         uint32 `json:"num"`
				WithCheddar bool   `json:"with_cheddar"`
			}](args)
			if err != nil {
				return nil, err
			}
			if a.WithCheddar {
				return h.engine.NftMintManyWithCheddar(ctx, call, a.Num)
			}
			return h.engine.NftMintMany(ctx, call, a.Num)
		},
		"nft_mint": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID      domain.TokenID   `json:"token_id"`
				TokenOwnerID domain.AccountID `json:"token_owner_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftMint(ctx, call, a.TokenID, a.TokenOwnerID)
		},
		"nft_transfer": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				ReceiverID domain.AccountID `json:"receiver_id"`
				TokenID    domain.TokenID   `json:"token_id"`
				ApprovalID *uint64          `json:"approval_id"`
				Memo       *string          `json:"memo"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.NftTransfer(ctx, call, a.ReceiverID, a.TokenID, a.ApprovalID, a.Memo)
		},
		"nft_transfer_call": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				ReceiverID domain.AccountID `json:"receiver_id"`
				TokenID    domain.TokenID   `json:"token_id"`
				ApprovalID *uint64          `json:"approval_id"`
				Memo       *string          `json:"memo"`
				Msg        string           `json:"msg"`
			}](args)
			if err != nil {
				return nil, err
			}
			pendingID, err := h.engine.NftTransferCall(ctx, call, a.ReceiverID, a.TokenID, a.ApprovalID, a.Memo, a.Msg)
			if err != nil {
				return nil, err
			}
			return gin.H{"pending_id": pendingID}, nil
		},
		"nft_transfer_payout": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				ReceiverID   domain.AccountID `json:"receiver_id"`
				TokenID      domain.TokenID   `json:"token_id"`
				ApprovalID   *uint64          `json:"approval_id"`
				Memo         *string          `json:"memo"`
				Balance      domain.U128      `json:"balance"`
				MaxLenPayout *uint32          `json:"max_len_payout"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftTransferPayout(ctx, call, a.ReceiverID, a.TokenID, a.ApprovalID, a.Memo, a.Balance, a.MaxLenPayout)
		},
		"nft_approve": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID   domain.TokenID   `json:"token_id"`
				AccountID domain.AccountID `json:"account_id"`
				Msg       *string          `json:"msg"`
			}](args)
			if err != nil {
				return nil, err
			}
			approvalID, err := h.engine.NftApprove(ctx, call, a.TokenID, a.AccountID, a.Msg)
			if err != nil {
				return nil, err
			}
			return gin.H{"approval_id": approvalID}, nil
		},
		"nft_revoke": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID   domain.TokenID   `json:"token_id"`
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.NftRevoke(ctx, call, a.TokenID, a.AccountID)
		},
		"nft_revoke_all": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID domain.TokenID `json:"token_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.NftRevokeAll(ctx, call, a.TokenID)
		},
		"ft_on_transfer": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				SenderID domain.AccountID `json:"sender_id"`
				Amount   domain.U128      `json:"amount"`
				Msg      string           `json:"msg"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.FtOnTransfer(ctx, call, a.SenderID, a.Amount, a.Msg)
		},
		"withdraw_cheddar": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Amount *domain.U128 `json:"amount"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.WithdrawCheddar(ctx, call, a.Amount)
		},
		"admin_set_cheddar_near": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				CheddarNear uint32 `json:"cheddar_near"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.AdminSetCheddarNear(ctx, call, a.CheddarNear)
		},
		"create_linkdrop": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PublicKey domain.PublicKey `json:"public_key"`
			}](args)
			if err != nil {
				return nil, err
			}
			return nil, h.engine.CreateLinkdrop(ctx, call, a.PublicKey)
		},
		"link_callback": func(ctx context.Context, call contract.Call, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PublicKey  domain.PublicKey `json:"public_key"`
				NewAccount domain.AccountID `json:"new_account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.LinkCallback(ctx, call, a.PublicKey, a.NewAccount)
		},
	}
}

func (h *Handler) registerViews() {
	h.views = map[string]viewFunc{
		"owner": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.Owner(ctx)
		},
		"admins": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.Admins(ctx)
		},
		"nft_metadata": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.NftMetadata(ctx)
		},
		"get_sale_info": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.GetSaleInfo(ctx)
		},
		"get_user_sale_info": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.GetUserSaleInfo(ctx, a.AccountID)
		},
		"whitelisted": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.Whitelisted(ctx, a.AccountID)
		},
		"remaining_allowance": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.RemainingAllowance(ctx, a.AccountID)
		},
		"mint_rate_limit": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.MintRateLimit(ctx)
		},
		"tokens_left": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.TokensLeft(ctx)
		},
		"initial": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.Initial(ctx)
		},
		"total_cost": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Minter      domain.AccountID `json:"minter"`
				Num         uint32           `json:"num"`
				WithCheddar bool             `json:"with_cheddar"`
			}](args)
			if err != nil {
				return nil, err
			}
			if a.WithCheddar {
				return h.engine.TotalCostInCheddar(ctx, a.Minter, a.Num)
			}
			return h.engine.TotalCost(ctx, a.Minter, a.Num)
		},
		"balance_of": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.BalanceOf(ctx, a.AccountID)
		},
		"cost_per_token": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Minter domain.AccountID `json:"minter"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.CostPerToken(ctx, a.Minter)
		},
		"token_storage_cost": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.TokenStorageCost(), nil
		},
		"cost_of_linkdrop": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				Minter domain.AccountID `json:"minter"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.CostOfLinkdrop(ctx, a.Minter)
		},
		"nft_token": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID domain.TokenID `json:"token_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftToken(ctx, a.TokenID)
		},
		"nft_tokens": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				FromIndex *domain.U128 `json:"from_index"`
				Limit     *int         `json:"limit"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftTokens(ctx, a.FromIndex, a.Limit)
		},
		"nft_tokens_for_owner": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
				FromIndex *domain.U128     `json:"from_index"`
				Limit     *int             `json:"limit"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftTokensForOwner(ctx, a.AccountID, a.FromIndex, a.Limit)
		},
		"nft_total_supply": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.NftTotalSupply(ctx)
		},
		"nft_supply_for_owner": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				AccountID domain.AccountID `json:"account_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftSupplyForOwner(ctx, a.AccountID)
		},
		"nft_is_approved": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID           domain.TokenID   `json:"token_id"`
				ApprovedAccountID domain.AccountID `json:"approved_account_id"`
				ApprovalID        *uint64          `json:"approval_id"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftIsApproved(ctx, a.TokenID, a.ApprovedAccountID, a.ApprovalID)
		},
		"nft_payout": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				TokenID      domain.TokenID `json:"token_id"`
				Balance      domain.U128    `json:"balance"`
				MaxLenPayout *uint32        `json:"max_len_payout"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.NftPayout(ctx, a.TokenID, a.Balance, a.MaxLenPayout)
		},
		"check_key": func(ctx context.Context, args json.RawMessage) (any, error) {
			a, err := decode[struct {
				PublicKey domain.PublicKey `json:"public_key"`
			}](args)
			if err != nil {
				return nil, err
			}
			return h.engine.CheckKey(ctx, a.PublicKey)
		},
		"get_key_balance": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.GetKeyBalance(ctx)
		},
		"get_linkdrop_contract": func(ctx context.Context, args json.RawMessage) (any, error) {
			return h.engine.GetLinkdropContract(ctx)
		},
	}
}
