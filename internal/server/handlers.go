package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := s.bookkeeperSvc.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		_ = c.Error(errors.Unavailable.Explain("database unreachable").Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	customer, err := s.bookkeeperSvc.CreateCustomer(c.Request.Context(), req.FirstName, req.LastName)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Location", fmt.Sprintf("/customer/%d", customer.ID))
	c.JSON(http.StatusCreated, customer)
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	acc, err := s.bookkeeperSvc.CreateAccount(c.Request.Context(), req.CustomerID, req.Currency, req.InitialDeposit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Location", fmt.Sprintf("/account/%d", acc.ID))
	c.JSON(http.StatusCreated, newAccountResponse(acc))
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	acc, err := s.bookkeeperSvc.GetAccount(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(acc))
}

func (s *Server) handleDeposit(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	acc, err := s.bookkeeperSvc.Deposit(c.Request.Context(), id, *req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(acc))
}

func (s *Server) handleWithdraw(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	acc, err := s.bookkeeperSvc.Withdraw(c.Request.Context(), id, *req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(acc))
}

func (s *Server) handleTransfer(c *gin.Context) {
	fromID, err := pathID(c, "from")
	if err != nil {
		_ = c.Error(err)
		return
	}
	toID, err := pathID(c, "to")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	from, to, err := s.bookkeeperSvc.Transfer(c.Request.Context(), fromID, toID, *req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, transferResponse{From: newAccountResponse(from), To: newAccountResponse(to)})
}

func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Invalid.Explain("invalid account id %q", raw).WithField("invalid", name, "must be a positive integer")
	}
	return id, nil
}
