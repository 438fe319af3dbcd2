package models

import (
	"errors"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	// ReasonOther — причина «Другое», требующая текстового описания.
	ReasonOther = "Other"
	// ReturnCategoryOther — категория возврата «Другое».
	ReturnCategoryOther = "other"
	// MinRestorationReasonLength — минимальная длина причины восстановления.
	MinRestorationReasonLength = 10
	// MaxEvidenceImages — максимум изображений-доказательств в одном запросе.
	MaxEvidenceImages = 5
)

var (
	ErrReasonRequired      = errors.New("reason is required")
	ErrUnknownReason       = errors.New("reason is not in the allowed list")
	ErrDescriptionRequired = errors.New("description is required for reason Other")
	ErrReasonTooShort      = errors.New("reason is too short")
	ErrInvalidEvidence     = errors.New("evidence must be http(s) image urls")
	ErrTooManyEvidence     = errors.New("too many evidence images")
)

// CancellationReasons — причины отмены заказа до доставки.
var CancellationReasons = []string{
	"Ordered by mistake",
	"Found a better price elsewhere",
	"Delivery is taking too long",
	"Want to change shipping address",
	"Want to change payment method",
	ReasonOther,
}

// ReturnCategory — категория причины возврата или замены.
type ReturnCategory struct {
	Code       string   `json:"code"`
	Title      string   `json:"title"`
	SubReasons []string `json:"sub_reasons"`
}

// ReturnCategories — таксономия причин возврата и замены.
var ReturnCategories = []ReturnCategory{
	{Code: "damaged", Title: "Damaged product", SubReasons: []string{"Product arrived damaged", "Packaging was damaged", "Item is broken or cracked"}},
	{Code: "defective", Title: "Defective product", SubReasons: []string{"Not working", "Missing parts or accessories", "Stopped working after first use"}},
	{Code: "wrong_item", Title: "Wrong item", SubReasons: []string{"Received a different product", "Wrong size", "Wrong color"}},
	{Code: "not_as_described", Title: "Not as described", SubReasons: []string{"Quality not as expected", "Looks different from images", "Specifications do not match"}},
	{Code: "no_longer_needed", Title: "No longer needed", SubReasons: []string{"Changed my mind", "Found a better price", "Ordered by mistake"}},
	{Code: ReturnCategoryOther, Title: "Other", SubReasons: nil},
}

// DetailAccessReasons — причины запроса доступа к деталям заказа.
var DetailAccessReasons = []string{
	"Need invoice for records",
	"Warranty claim",
	"Payment dispute",
	"Tax filing",
	"Delivery issue investigation",
}

// ValidateCancellationReason проверяет причину отмены.
func ValidateCancellationReason(reason, description string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !lo.Contains(CancellationReasons, reason) {
		return ErrUnknownReason
	}
	if reason == ReasonOther && strings.TrimSpace(description) == "" {
		return ErrDescriptionRequired
	}
	return nil
}

// ValidateReturnReason проверяет причину возврата: reason — код категории,
// description — подпричина или свободный текст для категории other.
func ValidateReturnReason(category, description string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrReasonRequired
	}
	found, ok := lo.Find(ReturnCategories, func(c ReturnCategory) bool { return c.Code == category })
	if !ok {
		return ErrUnknownReason
	}
	description = strings.TrimSpace(description)
	if found.Code == ReturnCategoryOther {
		if description == "" {
			return ErrDescriptionRequired
		}
		return nil
	}
	if description != "" && !lo.Contains(found.SubReasons, description) {
		return ErrUnknownReason
	}
	return nil
}

// ValidateDetailAccessReason проверяет причину запроса доступа к деталям.
func ValidateDetailAccessReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !lo.Contains(DetailAccessReasons, reason) {
		return ErrUnknownReason
	}
	return nil
}

// ValidateRestorationReason проверяет причину восстановления.
func ValidateRestorationReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if len([]rune(reason)) < MinRestorationReasonLength {
		return ErrReasonTooShort
	}
	return nil
}

// NormalizeEvidence возвращает ссылки без пробелов по краям.
func NormalizeEvidence(urls []string) []string {
	if urls == nil {
		return nil
	}
	return lo.Map(urls, func(raw string, _ int) string { return strings.TrimSpace(raw) })
}

// ValidateEvidence проверяет ссылки на изображения.
func ValidateEvidence(urls []string) error {
	if len(urls) > MaxEvidenceImages {
		return ErrTooManyEvidence
	}
	for _, raw := range NormalizeEvidence(urls) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidEvidence
		}
	}
	return nil
}
