package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateDepositAddress derives a fresh per-order deposit address
func CreateDepositAddress(c *gin.Context) {
	if hdwallet == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Deposit addresses not configured"})
		return
	}

	var req DepositAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addressID, address, err := hdwallet.GenerateDepositAddress(
		req.OrderRef, req.Network, req.Token, time.Now().Add(24*time.Hour))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"address_id": addressID,
		"address":    address,
		"network":    req.Network,
		"token":      req.Token,
	})
}

// InitializeWallet installs or rotates the deposit-wallet xpub. The key is
// validated (public, right network, derivable) before anything is stored.
func InitializeWallet(c *gin.Context) {
	if hdwallet == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Deposit addresses not configured"})
		return
	}

	var req InitializeWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := hdwallet.InitializeHDWallet(req.Xpub, req.Network); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"initialized": true, "network": req.Network})
}

// UpdatePrice pushes a token unit price into the feed. Service-to-service
// endpoint for the price oracle.
func UpdatePrice(c *gin.Context) {
	var req PriceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.UnitPriceUsd)
	if err != nil || !price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit_price_usd must be a positive decimal"})
		return
	}

	feed.Update(req.Token, price)
	c.JSON(http.StatusOK, gin.H{"token": req.Token, "unit_price_usd": price.String()})
}
