package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/pkg/raddb"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh database master key",
	Long: `Generate a random 256-bit master key and print it hex encoded.

Store the key safely: a database sealed with a lost key cannot be
recovered.`,
	Run: func(cmd *cobra.Command, args []string) {
		key := raddb.GenerateKey()
		fmt.Println(hex.EncodeToString(key[:]))
	},
}
