package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cosignhq/multisig-gateway/api"
	"github.com/cosignhq/multisig-gateway/client"
)

var flagServerAddr = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "gateway address to request",
}
var flagAPIKey = &cli.StringFlag{
	Name:  "api-key",
	Usage: "service API key for HTTP basic auth",
}
var flagToken = &cli.StringFlag{
	Name:  "token",
	Usage: "hex-encoded admin or cosigner token",
}
var flagXPub = &cli.StringFlag{
	Name:  "xpub",
	Usage: "base58 extended public key of the cosigner",
}
var flagCosignerName = &cli.StringFlag{
	Name:  "cosigner-name",
	Usage: "human label for the cosigner",
}
var flagCosignerPath = &cli.StringFlag{
	Name:  "cosigner-path",
	Usage: "derivation path hint for the cosigner",
}
var flagM = &cli.IntFlag{
	Name:  "m",
	Usage: "required signature count",
}
var flagN = &cli.IntFlag{
	Name:  "n",
	Usage: "total cosigner count",
}
var flagJoinKey = &cli.StringFlag{
	Name:  "join-key",
	Usage: "hex-encoded wallet join key",
}

func main() {
	app := &cli.App{
		Name:  "wallet-cli",
		Usage: "Operate a multisig coordination gateway",
		Flags: []cli.Flag{
			flagServerAddr,
			flagAPIKey,
			flagToken,
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a wallet with the caller as first cosigner",
				ArgsUsage: "<wallet-id>",
				Flags:     []cli.Flag{flagM, flagN, flagXPub, flagCosignerName, flagCosignerPath},
				Action: func(cCtx *cli.Context) error {
					c, id, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.CreateWallet(context.Background(), id, &api.CreateWalletRequest{
						M:            cCtx.Int(flagM.Name),
						N:            cCtx.Int(flagN.Name),
						XPub:         cCtx.String(flagXPub.Name),
						CosignerName: cCtx.String(flagCosignerName.Name),
						CosignerPath: cCtx.String(flagCosignerPath.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "join",
				Usage:     "Join an existing wallet as a new cosigner",
				ArgsUsage: "<wallet-id>",
				Flags:     []cli.Flag{flagJoinKey, flagXPub, flagCosignerName, flagCosignerPath},
				Action: func(cCtx *cli.Context) error {
					c, id, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.JoinWallet(context.Background(), id, &api.JoinWalletRequest{
						JoinKey:      cCtx.String(flagJoinKey.Name),
						XPub:         cCtx.String(flagXPub.Name),
						CosignerName: cCtx.String(flagCosignerName.Name),
						CosignerPath: cCtx.String(flagCosignerPath.Name),
					})
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a wallet's info, balance and receive address",
				ArgsUsage: "<wallet-id>",
				Action: func(cCtx *cli.Context) error {
					c, id, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.GetWallet(context.Background(), id)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "list",
				Usage: "List all wallets (admin only)",
				Action: func(cCtx *cli.Context) error {
					c := clientFromFlags(cCtx)
					resp, err := c.ListWallets(context.Background())
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a wallet (admin only)",
				ArgsUsage: "<wallet-id>",
				Action: func(cCtx *cli.Context) error {
					c, id, err := newClient(cCtx)
					if err != nil {
						return err
					}
					removed, err := c.RemoveWallet(context.Background(), id)
					if err != nil {
						return err
					}
					fmt.Println(removed)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func clientFromFlags(cCtx *cli.Context) *client.Client {
	return &client.Client{
		BaseURL: cCtx.String(flagServerAddr.Name),
		APIKey:  cCtx.String(flagAPIKey.Name),
		Token:   cCtx.String(flagToken.Name),
	}
}

func newClient(cCtx *cli.Context) (*client.Client, string, error) {
	id := cCtx.Args().First()
	if id == "" {
		return nil, "", fmt.Errorf("wallet id argument is required")
	}
	return clientFromFlags(cCtx), id, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
