package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/view"
)

// Amounts in request bodies are decimal JUL strings such as "1.5".
type sendRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
}

type stakeRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type purchaseRequest struct {
	Address   string  `json:"address"`
	USDAmount float64 `json:"usdAmount"`
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

type refreshRequest struct {
	Resource string `json:"resource"`
	Address  string `json:"address"`
}

// resolve maps an alias to its address; anything else is returned unchanged
// for the coordinator to validate.
func (s *Server) resolve(nameOrAddress string) string {
	if addr, ok := s.wallets.Resolve(nameOrAddress); ok {
		return addr
	}
	return nameOrAddress
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, &models.ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

func (s *Server) getView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"wallets": s.wallets.Wallets(),
		"view":    s.coord.View().Snapshot(),
	})
}

func (s *Server) listWallets(c *gin.Context) {
	snap := s.coord.View().Snapshot()
	type walletView struct {
		models.Wallet
		Balance *string     `json:"balance,omitempty"`
		Status  view.Status `json:"status"`
	}
	out := []walletView{}
	for _, w := range s.wallets.Wallets() {
		wv := walletView{Wallet: w, Status: view.StatusIdle}
		if r, ok := snap.Balances[w.Address]; ok {
			wv.Status = r.Status
			if r.Seq > 0 {
				bal := r.Value.Decimal()
				wv.Balance = &bal
			}
		}
		out = append(out, wv)
	}
	c.JSON(http.StatusOK, out)
}

// createWallet creates a wallet, funding it when the fund query parameter
// carries a USD amount.
func (s *Server) createWallet(c *gin.Context) {
	ctx := c.Request.Context()
	fund := c.Query("fund")
	if fund == "" {
		addr, err := s.coord.CreateWallet(ctx)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"address": addr})
		return
	}

	usd, err := strconv.ParseFloat(fund, 64)
	if err != nil {
		abort(c, &models.ValidationError{Field: "fund", Reason: "not a number: " + fund})
		return
	}
	addr, acquired, err := s.coord.CreateAndFund(ctx, usd)
	if err != nil {
		if addr != "" {
			c.AbortWithStatusJSON(statusFor(err), gin.H{"address": addr, "error": models.UserMessage(err)})
			return
		}
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": addr, "julAmount": acquired.Decimal()})
}

func (s *Server) setAlias(c *gin.Context) {
	var req aliasRequest
	if !bind(c, &req) {
		return
	}
	if err := s.wallets.SetAlias(c.Request.Context(), c.Param("address"), req.Alias); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	var err error
	if req.Resource == "" {
		err = s.coord.RefreshAll(ctx)
	} else {
		kind, perr := view.ParseKind(req.Resource)
		if perr != nil {
			abort(c, &models.ValidationError{Field: "resource", Reason: perr.Error()})
			return
		}
		key := view.Key{Kind: kind}
		if kind == view.KindBalance {
			if req.Address == "" {
				abort(c, &models.ValidationError{Field: "address", Reason: "required for balance refresh"})
				return
			}
			key = view.Balance(s.resolve(req.Address))
		}
		err = s.coord.Refresh(ctx, key)
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s.coord.View().Snapshot())
}

func (s *Server) sendTransaction(c *gin.Context) {
	var req sendRequest
	if !bind(c, &req) {
		return
	}
	amount, err := models.ParseJUL("amount", req.Amount)
	if err != nil {
		abort(c, err)
		return
	}
	var fee models.Amount
	if req.Fee != "" {
		if fee, err = models.ParseJUL("fee", req.Fee); err != nil {
			abort(c, err)
			return
		}
	}
	tx, err := s.coord.SendTransaction(c.Request.Context(), s.resolve(req.From), s.resolve(req.To), amount, fee)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, tx)
}

func (s *Server) stake(action func(context.Context, string, models.Amount) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stakeRequest
		if !bind(c, &req) {
			return
		}
		amount, err := models.ParseJUL("amount", req.Amount)
		if err != nil {
			abort(c, err)
			return
		}
		if err := action(c.Request.Context(), s.resolve(req.Address), amount); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) purchase(c *gin.Context) {
	var req purchaseRequest
	if !bind(c, &req) {
		return
	}
	acquired, err := s.coord.Purchase(c.Request.Context(), s.resolve(req.Address), req.USDAmount)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"julAmount": acquired.Decimal()})
}

func (s *Server) forge(c *gin.Context) {
	if err := s.coord.ForgeBlock(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
