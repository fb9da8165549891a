package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/money"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Server 是 HTTP Adapter (Driving Adapter)
// 只負責參數轉換與狀態碼對應，業務邏輯全部在 usecase
type Server struct {
	core *usecase.CoreUseCase
}

func NewServer(core *usecase.CoreUseCase) *Server {
	return &Server{
		core: core,
	}
}

// Router 建立並回傳 gin Engine
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.POST("/accounts", s.createAccount)
	r.DELETE("/accounts/:id", s.deleteAccount)
	r.GET("/accounts/:id/balance", s.getBalance)
	r.POST("/accounts/:id/credit", s.credit)
	r.POST("/accounts/:id/debit", s.debit)
	r.GET("/accounts/:id/transactions", s.listTransactions)
	r.GET("/accounts/:id/stats", s.stats)
	r.GET("/accounts/:id/daily", s.dailySummary)

	return r
}

// errStatus 把 domain 錯誤對應到 HTTP 狀態碼
// 業務錯誤 (4xx) 與基礎設施錯誤 (5xx) 必須分開，前者給使用者看，後者要告警
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrUnknownTransactionKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

// accountID 從路徑參數解析帳戶 ID
func accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return 0, false
	}
	return id, true
}

func tranJSON(tran *domain.Transaction) gin.H {
	return gin.H{
		"id":          tran.ID,
		"ref_id":      tran.RefID.String(),
		"account_id":  tran.AccountID,
		"amount":      money.Format(tran.Amount),
		"kind":        tran.Kind.String(),
		"status":      tran.Status.String(),
		"description": tran.Description,
		"created_at":  tran.CreatedAt,
	}
}

type createAccountRequest struct {
	ID int64 `json:"id" binding:"required"`
}

func (s *Server) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := s.core.CreateAccount(c.Request.Context(), req.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      account.ID,
		"balance": money.Format(account.Balance),
	})
}

func (s *Server) deleteAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	if err := s.core.DeleteAccount(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getBalance(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	balance, err := s.core.GetBalance(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id": id,
		"balance":    money.Format(balance),
	})
}

type transactionRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
	// RefID 可選，帶相同 RefID 的重試不會重複入帳
	RefID string `json:"ref_id"`
}

// parse 解析金額與 RefID，格式錯誤時回應 400
func (req *transactionRequest) parse(c *gin.Context) (int64, uuid.UUID, bool) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + err.Error()})
		return 0, uuid.Nil, false
	}
	refID := uuid.Nil
	if req.RefID != "" {
		refID, err = uuid.Parse(req.RefID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ref_id: " + err.Error()})
			return 0, uuid.Nil, false
		}
	}
	return amount, refID, true
}

func (s *Server) credit(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, refID, ok := req.parse(c)
	if !ok {
		return
	}

	tran, err := s.core.Credit(c.Request.Context(), id, amount, refID, req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tranJSON(tran))
}

func (s *Server) debit(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, refID, ok := req.parse(c)
	if !ok {
		return
	}

	tran, err := s.core.Debit(c.Request.Context(), id, amount, refID, req.Description)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tranJSON(tran))
}

// pagination 從 page/pageSize 查詢參數換算 offset/limit
func pagination(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}

	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	switch {
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	case pageSize <= 0:
		pageSize = DefaultPageSize
	}

	return (page - 1) * pageSize, pageSize
}

func (s *Server) listTransactions(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	kind, err := domain.ParseTransactionKind(c.Query("kind"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	offset, limit := pagination(c)

	trans, err := s.core.ListTransactions(c.Request.Context(), id, kind, offset, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	data := make([]gin.H, 0, len(trans))
	for i := range trans {
		data = append(data, tranJSON(&trans[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// stats 最近 N 天的交易統計 (預設 30 天)
func (s *Server) stats(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))
	if days <= 0 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days)
	sum, err := s.core.Aggregate(c.Request.Context(), id, since)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_transactions": sum.Count,
		"total_credits":      money.Format(sum.CreditTotal),
		"total_debits":       money.Format(sum.DebitTotal),
		"net_change":         money.Format(sum.CreditTotal - sum.DebitTotal),
		"period_days":        days,
	})
}

// dailySummary 最近 N 天的每日扣帳總額 (預設 7 天，由舊到新，給圖表用)
func (s *Server) dailySummary(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))
	if days <= 0 {
		days = 7
	}

	summary, err := s.core.DailySummary(c.Request.Context(), id, days)
	if err != nil {
		abortWithError(c, err)
		return
	}

	data := make([]gin.H, 0, len(summary))
	for _, day := range summary {
		data = append(data, gin.H{
			"date":  day.Date,
			"total": money.Format(day.DebitTotal),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
