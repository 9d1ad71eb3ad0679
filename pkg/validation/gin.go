package validation

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Tags registered on gin's validator engine.
const (
	TagTxHash          = "txhash"
	TagPositiveDecimal = "positive_decimal"
	TagWalletAddress   = "wallet_address"
)

// RegisterGinValidators installs the custom tags on gin's default validator
// so request structs can use them in `binding` tags.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Register installs the custom tags on v.
func Register(v *validator.Validate) error {
	validators := map[string]validator.Func{
		TagTxHash: func(fl validator.FieldLevel) bool {
			return ValidateTxHash(fl.Field().String()) == nil
		},
		TagPositiveDecimal: func(fl validator.FieldLevel) bool {
			_, err := ParsePositiveDecimal(fl.Field().String())
			return err == nil
		},
		TagWalletAddress: func(fl validator.FieldLevel) bool {
			return ValidateWalletAddress(fl.Field().String()) == nil
		},
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}
