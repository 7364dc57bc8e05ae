package services

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "spendlens/internal/errors"
	"spendlens/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// CreateUser registers a new user
func (s *userService) CreateUser(email, password, firstName, lastName string) (*models.User, error) {
	// Validate input
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	// Check if user with email exists
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hashedPassword),
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// GetUserByEmail retrieves an active user by email
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(email)), true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin returns the user for valid credentials. Unknown emails and
// wrong passwords produce the same error.
func (s *userService) AttemptLogin(email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.VerifyPassword(user, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile changes the user's name fields. Email is not editable.
func (s *userService) UpdateProfile(userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	var columns []string
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
		columns = append(columns, "first_name")
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
		columns = append(columns, "last_name")
	}
	if len(columns) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Select(columns).Updates(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *userService) ChangePassword(userID, currentPassword, newPassword string) (*models.User, error) {
	if currentPassword == "" || newPassword == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "current and new password are required")
	}
	if currentPassword == newPassword {
		return nil, apperrors.ErrSamePassword
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if !s.VerifyPassword(user, currentPassword) {
		return nil, apperrors.ErrWrongPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.Password = string(hashed)
	if err := s.db.Model(user).Update("password", user.Password).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// DeleteAccount removes the user and everything they own in one database
// transaction: transactions (soft-deleted ones too), item links, offers
// targeting their categories, categories, items and audit history.
func (s *userService) DeleteAccount(userID, password string) error {
	if password == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "password is required to delete the account")
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(user, password) {
		return apperrors.ErrInvalidCredentials
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		owned := tx.Unscoped().Model(&models.Category{}).Select("id").Where("user_id = ?", userID)

		steps := []func() error{
			func() error {
				return tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Transaction{}).Error
			},
			func() error {
				return tx.Exec(`DELETE FROM category_items
					WHERE category_id IN (SELECT id FROM categories WHERE user_id = ?)
					OR item_id IN (SELECT id FROM items WHERE user_id = ?)`, userID, userID).Error
			},
			func() error {
				return tx.Unscoped().Where("category_id IN (?)", owned).Delete(&models.Offer{}).Error
			},
			func() error {
				return tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Category{}).Error
			},
			func() error {
				return tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Item{}).Error
			},
			func() error {
				return tx.Unscoped().Where("user_id = ?", userID).Delete(&models.AuditLog{}).Error
			},
			func() error {
				return tx.Unscoped().Delete(user).Error
			},
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
}
