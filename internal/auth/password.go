package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
// これを超える部分は照合時に切り捨てられるため、登録でもログインでも受け付けない。
const MaxPasswordBytes = 72

// dummyPassword は未登録メールアドレスでのログイン時に比較する固定パスワード。
const dummyPassword = "inkpost-dummy-password"

// PasswordHasher はパスワードのハッシュ化と照合を行う。
type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

// NewPasswordHasher は指定コストのPasswordHasherを生成する。
// コストがbcryptの範囲外の場合はbcrypt.DefaultCostを使う。
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Hash はパスワードのbcryptハッシュを返す。
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はハッシュとパスワードを定数時間で照合する。
// 不一致はfalse、ハッシュの形式不正などはエラーを返す。
func (h *PasswordHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w", err)
}

// CompareDummy は存在しないユーザーに対しても同程度の時間をかけるための比較を行う。
func (h *PasswordHasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}
