package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/LuckyMachines/hivemind/internal/hub"
	"github.com/LuckyMachines/hivemind/internal/round"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxPlayerLength = 64
	maxPhraseLength = 128
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("player", func(fl validator.FieldLevel) bool {
			return validatePlayer(fl.Field().String()) == nil
		})
		_ = engine.RegisterValidation("hubname", func(fl validator.FieldLevel) bool {
			return hub.ValidateName(fl.Field().String()) == nil
		})
		_ = engine.RegisterValidation("phrase", func(fl validator.FieldLevel) bool {
			return validatePhrase(fl.Field().String()) == nil
		})
		_ = engine.RegisterValidation("commit", func(fl validator.FieldLevel) bool {
			_, err := round.ParseCommit(fl.Field().String())
			return err == nil
		})
	})
}

// validatePlayer accepts opaque caller ids such as wallet addresses.
func validatePlayer(id string) error {
	if id == "" {
		return errors.New("player is required")
	}
	if len(id) > maxPlayerLength {
		return fmt.Errorf("player must be %d characters or fewer", maxPlayerLength)
	}
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		return errors.New("player contains unsupported characters")
	}
	return nil
}

func validatePhrase(phrase string) error {
	if strings.TrimSpace(phrase) == "" {
		return errors.New("secret phrase is required")
	}
	if len(phrase) > maxPhraseLength {
		return fmt.Errorf("secret phrase must be %d bytes or fewer", maxPhraseLength)
	}
	return nil
}
