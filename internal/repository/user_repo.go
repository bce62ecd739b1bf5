package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"skillmint/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateReferralCode returns a code matching ^[A-Z]{3}[A-F0-9]{4}[A-Z]{3}$.
// The first three letters come from the name when it has enough of them.
func generateReferralCode(name string) (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var prefix []byte
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			prefix = append(prefix, byte(r))
			if len(prefix) == 3 {
				break
			}
		}
	}
	for len(prefix) < 3 {
		prefix = append(prefix, 'X')
	}
	suffix := []byte{letters[int(b[2])%26], letters[int(b[3])%26], letters[int(b[4])%26]}
	return string(prefix) + strings.ToUpper(hex.EncodeToString(b[:2])) + string(suffix), nil
}

// Create stores u, generating a unique referral code when none is set.
func (r *UserRepository) Create(u *models.User) error {
	if u.ReferralCode != "" {
		return r.db.Create(u).Error
	}
	for i := 0; i < 10; i++ {
		code, err := generateReferralCode(u.Name)
		if err != nil {
			return err
		}
		u.ReferralCode = code
		err = r.db.Create(u).Error
		if err == nil {
			return nil
		}
		if !IsDuplicate(err) {
			return err
		}
		// collision on the code or the email; only the code is worth retrying
		var count int64
		if r.db.Model(&models.User{}).Where("email = ?", u.Email).Count(&count); count > 0 {
			return err
		}
	}
	u.ReferralCode = ""
	return fmt.Errorf("failed to generate a unique referral code after retries")
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByReferralCode(code string) (*models.User, error) {
	var u models.User
	err := r.db.Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}
