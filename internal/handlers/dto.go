package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orders/internal/apperror"
	"orders/internal/models"
	"orders/internal/services"

	"github.com/go-playground/validator/v10"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// CreateOrderRequest is the payload of orders_create.
type CreateOrderRequest struct {
	Items []services.RequestedItem `json:"items" validate:"required,min=1,dive"`
}

// FindAllRequest is the payload of orders_findAll.
type FindAllRequest struct {
	Status string `json:"status" query:"status" validate:"omitempty,oneof=PENDING PAID CANCELLED"`
	Page   *int   `json:"page" query:"page" validate:"omitempty,gte=1"`
	Limit  *int   `json:"limit" query:"limit" validate:"omitempty,gte=1,lte=100"`
}

// Pagination applies defaults to the request.
func (r FindAllRequest) Pagination() models.Pagination {
	p := models.Pagination{Page: defaultPage, Limit: defaultLimit, Status: models.OrderStatus(r.Status)}
	if r.Page != nil {
		p.Page = *r.Page
	}
	if r.Limit != nil {
		p.Limit = *r.Limit
	}
	return p
}

// FindOneRequest is the payload of orders_findOne and orders_createPaymentSession.
type FindOneRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

// ChangeOrderStatusRequest is the payload of orders_changeOrderStatus.
type ChangeOrderStatusRequest struct {
	ID     string `json:"id" validate:"required,uuid"`
	Status string `json:"status" validate:"required,oneof=PENDING PAID CANCELLED"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind       apperror.Kind `json:"kind"`
	StatusCode int           `json:"statusCode"`
	Message    string        `json:"message"`
}

// NewErrorResponse translates err for a remote caller.
func NewErrorResponse(err error) ErrorResponse {
	kind, msg := apperror.Public(err)
	return ErrorResponse{Kind: kind, StatusCode: apperror.HTTPStatus(kind), Message: msg}
}

var validate = validator.New()

// validateStruct runs the validation tags of v and reports all failures as
// a single validation error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
		}
	}
	return apperror.Validation("%s", strings.Join(msgs, "; "))
}

// decode unmarshals a JSON body into v and validates it.
func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperror.Validation("malformed payload: %v", err)
	}
	return validateStruct(v)
}
