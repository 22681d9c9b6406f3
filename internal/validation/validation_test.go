package validation

import (
	"testing"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b", false},
		{"valid checksummed", "0x7D53F102f4d4aa014dB4e10d6DEEc2009B3cDa6B", false},
		{"zero address", "0x0000000000000000000000000000000000000000", false},
		{"too short", "0x7d53f102", true},
		{"too long", "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b00", true},
		{"missing prefix", "7d53f102f4d4aa014db4e10d6deec2009b3cda6b00", true},
		{"non-hex characters", "0x7d53f102f4d4aa014db4e10d6deec2009b3cdzzz", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTransactionHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "0x1111111111111111111111111111111111111111111111111111111111111111", false},
		{"too short", "0x1111", true},
		{"missing prefix", "1111111111111111111111111111111111111111111111111111111111111111", true},
		{"non-hex", "0x111111111111111111111111111111111111111111111111111111111111111z", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransactionHash(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransactionHash(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBytecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "0x608060405234801561001057600080fd5b50", false},
		{"empty code", "0x", false},
		{"missing prefix", "6080", true},
		{"odd digits", "0x608", true},
		{"non-hex", "0x60zz", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBytecode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBytecode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChainID(t *testing.T) {
	if err := ValidateChainID(1); err != nil {
		t.Errorf("ValidateChainID(1) error = %v", err)
	}
	if err := ValidateChainID(42161); err != nil {
		t.Errorf("ValidateChainID(42161) error = %v", err)
	}
	if err := ValidateChainID(0); err == nil {
		t.Error("ValidateChainID(0) error = nil, want error")
	}
	if err := ValidateChainID(-1); err == nil {
		t.Error("ValidateChainID(-1) error = nil, want error")
	}
}

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"long form", "0.8.19+commit.7dd6d404", false},
		{"bare semver", "0.8.19", false},
		{"with v prefix", "v0.8.19", false},
		{"vyper style", "0.3.7+commit.6020b8bb", false},
		{"no patch", "0.8", true},
		{"commit too short", "0.8.19+commit.7dd6", true},
		{"garbage", "latest", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCompilerVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCompilerVersionCore(t *testing.T) {
	if got := CompilerVersionCore("0.8.19+commit.7dd6d404"); got != "0.8.19" {
		t.Errorf("CompilerVersionCore() = %v, want 0.8.19", got)
	}
	if got := CompilerVersionCore("v0.8.19"); got != "0.8.19" {
		t.Errorf("CompilerVersionCore() = %v, want 0.8.19", got)
	}
}

func TestCompareCompilerVersions(t *testing.T) {
	if got := CompareCompilerVersions("0.8.19+commit.7dd6d404", "0.8.20+commit.a1b79de6"); got != -1 {
		t.Errorf("CompareCompilerVersions() = %d, want -1", got)
	}
	if got := CompareCompilerVersions("0.8.19", "0.8.19+commit.7dd6d404"); got != 0 {
		t.Errorf("CompareCompilerVersions() = %d, want 0", got)
	}
}
