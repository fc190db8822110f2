package main

import (
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/fd1az/dexprice/business/pricing/domain"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a pool sqrtPriceX96 into token prices",
		RunE:  runConvert,
	}
	cmd.Flags().String("sqrt-price", "", "slot0 sqrtPriceX96 (decimal or 0x hex)")
	cmd.Flags().Uint8("decimals0", 18, "token0 decimals")
	cmd.Flags().Uint8("decimals1", 18, "token1 decimals")
	_ = cmd.MarkFlagRequired("sqrt-price")
	return cmd
}

func runConvert(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("sqrt-price")
	decimals0, _ := cmd.Flags().GetUint8("decimals0")
	decimals1, _ := cmd.Flags().GetUint8("decimals1")

	sqrtPrice, ok := new(big.Int).SetString(raw, 0)
	if !ok || sqrtPrice.Sign() < 0 {
		return fmt.Errorf("invalid sqrt price %q", raw)
	}

	return writeConversion(cmd.OutOrStdout(), sqrtPrice, decimals0, decimals1)
}

func writeConversion(w io.Writer, sqrtPrice *big.Int, decimals0, decimals1 uint8) error {
	price0, price1 := domain.SqrtPriceX96ToTokenPrices(sqrtPrice, decimals0, decimals1)
	_, err := fmt.Fprintf(w, "price0 (token0 per token1): %s\nprice1 (token1 per token0): %s\n",
		price0.String(), price1.String())
	return err
}
