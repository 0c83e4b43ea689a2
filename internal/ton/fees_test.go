package ton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
)

func TestToNano(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"0.1", 100_000_000},
		{"1", 1_000_000_000},
		{"2.5", 2_500_000_000},
		{"1000000", 1_000_000_000_000_000},
		{"0.000000001", 1},
		{"0.0000000019", 1}, // floors past nine decimals
		{".5", 500_000_000},
		{"3.", 3_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ToNano(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToNanoRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{"", "-1", "-0.5", "abc", "1.2.3", "1e9", "NaN", "Inf", ".", "1,5"} {
		t.Run(input, func(t *testing.T) {
			_, err := ToNano(input)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidAmount, apperrors.GetCode(err))
		})
	}
}

func TestComputeFeesSplitsExactly(t *testing.T) {
	budgets := []string{"0", "0.1", "1", "1000000", "0.000000001", "2.5", "0.333333333"}
	rates := []int{0, 1, 250, 9999, 10000}

	for _, budget := range budgets {
		nano, err := ToNano(budget)
		require.NoError(t, err)

		for _, bps := range rates {
			fees, err := ComputeFees(nano, bps)
			require.NoError(t, err)

			assert.Equal(t, nano, fees.PlatformFeeNano+fees.ProviderNano,
				"fee split must sum to the budget for %s TON at %d bps", budget, bps)
			assert.GreaterOrEqual(t, fees.PlatformFeeNano, int64(0))
			assert.GreaterOrEqual(t, fees.ProviderNano, int64(0))
		}
	}
}

func TestComputeFeesStandardOrder(t *testing.T) {
	nano, err := ToNano("2.5")
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000_000), nano)

	fees, err := ComputeFees(nano, DefaultFeeBps)
	require.NoError(t, err)

	assert.Equal(t, int64(62_500_000), fees.PlatformFeeNano)
	assert.Equal(t, int64(2_437_500_000), fees.ProviderNano)
	assert.Equal(t, "0.0625", fees.PlatformFeeTON())
	assert.Equal(t, "2.4375", fees.ProviderTON())
	assert.Equal(t, "2.5", fees.BudgetTON())
}

func TestComputeFeesNoFloatDriftAtLargeBudgets(t *testing.T) {
	// 9.2 billion TON: budget * bps overflows float64 mantissa precision
	budgetNano := int64(9_200_000_000_000_000_000)
	fees, err := ComputeFees(budgetNano, 250)
	require.NoError(t, err)

	assert.Equal(t, int64(230_000_000_000_000_000), fees.PlatformFeeNano)
	assert.Equal(t, budgetNano, fees.PlatformFeeNano+fees.ProviderNano)
}

func TestComputeFeesRejectsBadInput(t *testing.T) {
	_, err := ComputeFees(-1, 250)
	assert.Equal(t, apperrors.ErrCodeInvalidAmount, apperrors.GetCode(err))

	_, err = ComputeFees(100, -1)
	assert.Equal(t, apperrors.ErrCodeInvalidAmount, apperrors.GetCode(err))

	_, err = ComputeFees(100, 10001)
	assert.Equal(t, apperrors.ErrCodeInvalidAmount, apperrors.GetCode(err))
}

func TestMeetsMinimum(t *testing.T) {
	min, err := ToNano("0.1")
	require.NoError(t, err)
	assert.True(t, MeetsMinimum(min))

	below, err := ToNano("0.099999999")
	require.NoError(t, err)
	assert.False(t, MeetsMinimum(below))
}

func TestFormatNano(t *testing.T) {
	tests := []struct {
		nano int64
		want string
	}{
		{0, "0"},
		{1, "0.000000001"},
		{100_000_000, "0.1"},
		{1_000_000_000, "1"},
		{2_437_500_000, "2.4375"},
		{1_500_000_000_000, "1500"},
		{-62_500_000, "-0.0625"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNano(tt.nano))
		})
	}
}

func TestFormatNanoRoundTrips(t *testing.T) {
	for _, nano := range []int64{0, 1, 999_999_999, 100_000_000, 2_500_000_000, 62_500_000, 1_000_000_000_000_000} {
		formatted := FormatNano(nano)
		parsed, err := ToNano(formatted)
		require.NoError(t, err)
		assert.Equal(t, nano, parsed, "FormatNano(%d) = %q must parse back exactly", nano, formatted)
		assert.Equal(t, formatted, FormatNano(parsed), "formatting must be idempotent")
	}
}
