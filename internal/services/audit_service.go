package services

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"spendlens/internal/logger"
	"spendlens/internal/models"
)

// Audit actions recorded by the handlers.
const (
	AuditRegister            = "REGISTER"
	AuditLogin               = "LOGIN"
	AuditUpdateProfile       = "UPDATE_PROFILE"
	AuditChangePassword      = "CHANGE_PASSWORD"
	AuditCreateTransaction   = "CREATE_TRANSACTION"
	AuditUpdateTransaction   = "UPDATE_TRANSACTION"
	AuditDeleteTransaction   = "DELETE_TRANSACTION"
	AuditCreateCategory      = "CREATE_CATEGORY"
	AuditUpdateCategory      = "UPDATE_CATEGORY"
	AuditDeleteCategory      = "DELETE_CATEGORY"
	AuditAddCategoryItems    = "ADD_CATEGORY_ITEMS"
	AuditRemoveCategoryItems = "REMOVE_CATEGORY_ITEMS"
	AuditCreateItem          = "CREATE_ITEM"
	AuditUpdateItem          = "UPDATE_ITEM"
	AuditDeleteItem          = "DELETE_ITEM"
)

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
//
// changes may hold the raw fields of a partial update: nil pointers are
// dropped, and money values are stored as their exact decimal text.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	log := logger.Named("audit")

	var changesJSON string
	if changes = auditChanges(changes); len(changes) > 0 {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Errorw("failed to marshal audit changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("failed to create audit entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

func auditChanges(changes map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(changes))
	for k, v := range changes {
		switch v := v.(type) {
		case nil:
		case decimal.Decimal:
			out[k] = v.String()
		case *decimal.Decimal:
			if v != nil {
				out[k] = v.String()
			}
		case *string:
			if v != nil {
				out[k] = *v
			}
		case *bool:
			if v != nil {
				out[k] = *v
			}
		case *models.TransactionKind:
			if v != nil {
				out[k] = string(*v)
			}
		default:
			out[k] = v
		}
	}
	return out
}
