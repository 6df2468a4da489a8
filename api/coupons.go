/*
Copyright 2024 Flashcart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	model2 "github.com/flashcart/flashcart/api/model"
	"github.com/flashcart/flashcart/internal/apierror"
	"github.com/flashcart/flashcart/model"

	"github.com/gin-gonic/gin"
)

// CreateCouponPool handles the creation of a new coupon pool.
// It binds the incoming JSON request to a CreateCouponPool object, validates it,
// and then creates the pool. The pool's quota store keys are reset as part of
// creation so a fresh pool always starts from a clean issuance state.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the pool.
// - 201 Created: If the pool is successfully created.
func (a Api) CreateCouponPool(c *gin.Context) {
	var newPool model2.CreateCouponPool
	if err := c.ShouldBindJSON(&newPool); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newPool.ValidateCreateCouponPool()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.flashcart.CreateCouponPool(c.Request.Context(), newPool.ToCouponPool())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetCouponPool(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.flashcart.GetCouponPool(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetAllCouponPools(c *gin.Context) {
	limit, offset := paginationParams(c)
	resp, err := a.flashcart.GetAllCouponPools(limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPoolStatus returns the live issuance numbers for a pool, read from the
// quota store rather than the relational projection.
func (a Api) GetPoolStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.flashcart.GetPoolStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRoster returns the first claimers of a pool in issuance order.
func (a Api) GetRoster(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	limit, _ := paginationParams(c)
	resp, err := a.flashcart.QuotaRoster(c.Request.Context(), id, int64(limit))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateCouponPoolStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	switch req.Status {
	case model.PoolStatusActive, model.PoolStatusInactive, model.PoolStatusExpired:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of ACTIVE, INACTIVE, EXPIRED"})
		return
	}

	err := a.flashcart.UpdateCouponPoolStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "pool status updated"})
}

// ClaimCoupon handles a first-come-first-served claim attempt against a pool.
// The outcome of the quota decision is returned as an API error with a 422
// status for business rejections (sold out, per-user limit, duplicate claim,
// closed window); a successful claim returns the issued claim with its rank.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the claim.
// - 422 Unprocessable Entity: If the quota decision rejects the claim.
// - 201 Created: If the claim is successfully issued.
func (a Api) ClaimCoupon(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.ClaimCoupon
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := req.ValidateClaimCoupon()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.flashcart.ClaimCoupon(c.Request.Context(), id, req.UserId)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetClaim(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.flashcart.GetClaim(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetUserClaims(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	userID, passed := c.Params.Get("user_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required. pass user_id in the route /:user_id"})
		return
	}

	resp, err := a.flashcart.GetUserClaims(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
