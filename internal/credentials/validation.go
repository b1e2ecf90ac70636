package credentials

import (
	"fmt"
	"strings"

	"github.com/muurk/wifiportal/internal/fault"
)

const (
	// MaxSSIDLength is the 802.11 SSID length limit in bytes
	MaxSSIDLength = 32
	// MinPassphraseLength is the WPA2 passphrase minimum
	MinPassphraseLength = 8
	// MaxPassphraseLength is the WPA2 passphrase maximum
	MaxPassphraseLength = 63
	// MaxRecordLength bounds one encoded record, separator included
	MaxRecordLength = 4096
)

// recordSeparators delimit fields and records, so neither field may hold them
const recordSeparators = "\t\r\n"

// ValidateSSID rejects an empty SSID
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return fault.New(fault.InvalidInput, "credentials.validate", "ssid cannot be empty")
	}
	return nil
}

// ValidateRecord rejects what the store refuses to save: an empty SSID, a
// tab or line break in either field, or a record too long to read back.
func ValidateRecord(ssid, password string) error {
	if err := ValidateSSID(ssid); err != nil {
		return err
	}
	if strings.ContainsAny(ssid, recordSeparators) {
		return fault.New(fault.InvalidInput, "credentials.validate", "ssid cannot contain tab or line break characters")
	}
	if strings.ContainsAny(password, recordSeparators) {
		return fault.New(fault.InvalidInput, "credentials.validate", "password cannot contain tab or line break characters")
	}
	if len(ssid)+len(password)+1 > MaxRecordLength {
		return fault.New(fault.InvalidInput, "credentials.validate",
			fmt.Sprintf("record exceeds %d bytes", MaxRecordLength))
	}
	return nil
}

// ValidateCredential checks a credential before it is saved.
// Anything ValidateRecord refuses is fatal. Everything else the store
// accepts as-is but a radio will likely reject, so it is reported as a
// warning.
func ValidateCredential(ssid, password string) []error {
	var errs []error

	if err := ValidateRecord(ssid, password); err != nil {
		errs = append(errs, err)
	}

	if len(ssid) > MaxSSIDLength {
		errs = append(errs, fmt.Errorf("warning: SSID too long (max %d bytes): %d bytes", MaxSSIDLength, len(ssid)))
	}

	if password != "" {
		if len(password) < MinPassphraseLength {
			errs = append(errs, fmt.Errorf("warning: passphrase too short for WPA2 (min %d chars): %d chars", MinPassphraseLength, len(password)))
		}
		if len(password) > MaxPassphraseLength {
			errs = append(errs, fmt.Errorf("warning: passphrase too long for WPA2 (max %d chars): %d chars", MaxPassphraseLength, len(password)))
		}
	}

	return errs
}

// IsWarning checks if a validation error is a warning (non-fatal).
// Warnings have error messages starting with "warning:".
func IsWarning(err error) bool {
	return strings.HasPrefix(err.Error(), "warning:")
}

// SeparateWarningsAndErrors separates validation errors into warnings and errors.
func SeparateWarningsAndErrors(errs []error) (warnings []error, critical []error) {
	for _, err := range errs {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			critical = append(critical, err)
		}
	}
	return warnings, critical
}
