package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
)

// SolanaClient talks to a Solana RPC node and signs mints with the
// configured authority account.
type SolanaClient struct {
	rpc          *client.Client
	tokenMint    common.PublicKey
	authority    types.Account
	pollInterval time.Duration
}

type SolanaClientConfig struct {
	RPCURL    string
	TokenMint string
	// Authority is the mint authority keypair; it both signs and pays fees.
	Authority    types.Account
	PollInterval time.Duration
}

func NewSolanaClient(cfg SolanaClientConfig) (*SolanaClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.TokenMint == "" {
		return nil, fmt.Errorf("token mint is required")
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &SolanaClient{
		rpc:          client.NewClient(cfg.RPCURL),
		tokenMint:    common.PublicKeyFromString(cfg.TokenMint),
		authority:    cfg.Authority,
		pollInterval: poll,
	}, nil
}

// FetchTransaction queries at confirmed commitment, never processed, so a
// transaction that could still be rolled back is never acted upon.
func (c *SolanaClient) FetchTransaction(ctx context.Context, txID string) (*TransactionDetail, error) {
	resp, err := c.rpc.GetTransactionWithConfig(ctx, txID, client.GetTransactionConfig{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, classifyRPCError("get transaction", err)
	}
	if resp == nil {
		return nil, nil
	}

	detail := &TransactionDetail{
		Signature: txID,
		Slot:      resp.Slot,
	}
	for _, key := range resp.Transaction.Message.Accounts {
		detail.AccountKeys = append(detail.AccountKeys, key.ToBase58())
	}
	if resp.Meta != nil {
		detail.Failed = resp.Meta.Err != nil
		detail.PreBalances = resp.Meta.PreBalances
		detail.PostBalances = resp.Meta.PostBalances
	}
	return detail, nil
}

func (c *SolanaClient) SubmitMint(ctx context.Context, req MintSubmission) (MintReceipt, error) {
	owner := common.PublicKeyFromString(req.DestinationOwner)
	ata, _, err := common.FindAssociatedTokenAddress(owner, c.tokenMint)
	if err != nil {
		return MintReceipt{}, protocol.ErrMintSubmissionFailed.Wrapf("derive token account: %v", err)
	}

	instructions := make([]types.Instruction, 0, 2)
	exists, err := c.accountExists(ctx, ata.ToBase58())
	if err != nil {
		return MintReceipt{}, err
	}
	if !exists {
		instructions = append(instructions, associated_token_account.CreateAssociatedTokenAccount(
			associated_token_account.CreateAssociatedTokenAccountParam{
				Funder:                 c.authority.PublicKey,
				Owner:                  owner,
				Mint:                   c.tokenMint,
				AssociatedTokenAccount: ata,
			},
		))
	}
	instructions = append(instructions, token.MintTo(token.MintToParam{
		Mint:   c.tokenMint,
		To:     ata,
		Auth:   c.authority.PublicKey,
		Amount: req.AtomicAmount,
	}))

	latest, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return MintReceipt{}, classifyRPCError("get latest blockhash", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{c.authority},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        c.authority.PublicKey,
			RecentBlockhash: latest.Blockhash,
			Instructions:    instructions,
		}),
	})
	if err != nil {
		return MintReceipt{}, protocol.ErrMintSubmissionFailed.Wrapf("build transaction: %v", err)
	}

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		if protocol.TransientNetwork(err) {
			return MintReceipt{}, protocol.ErrLedgerTransient.Wrapf("send transaction: %v", err)
		}
		return MintReceipt{}, protocol.ErrMintSubmissionFailed.Wrapf("send transaction: %v", err)
	}

	return MintReceipt{Signature: sig, LastValidBlockHeight: latest.LatestValidBlockHeight}, nil
}

// ConfirmSignature polls signature status until confirmed or the reference
// blockhash expires. Expiry is not failure: the mint may be resubmitted
// with fresh reference data. An RPC error while polling says nothing about
// the transaction's fate, so polling continues until the deadline; only a
// ledger-recorded failure of the transaction itself is returned as rejected.
func (c *SolanaClient) ConfirmSignature(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.rpc.GetSignatureStatus(ctx, signature)
		if err == nil && status != nil {
			if status.Err != nil {
				return protocol.ErrLedgerRejected.Wrapf("transaction %s failed on ledger: %v", signature, status.Err)
			}
			if cs := status.ConfirmationStatus; cs != nil &&
				(*cs == rpc.CommitmentConfirmed || *cs == rpc.CommitmentFinalized) {
				return nil
			}
		}

		height, err := c.blockHeight(ctx)
		if err == nil && height > lastValidBlockHeight {
			return ErrBlockhashExpired
		}

		select {
		case <-ctx.Done():
			return protocol.ErrMintConfirmationTimeout.Wrap(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *SolanaClient) Ping(ctx context.Context) error {
	if c.rpc == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.blockHeight(ctx)
	return err
}

// blockHeight unwraps the raw RPC call; the client wrapper exposes no
// getBlockHeight convenience method.
func (c *SolanaClient) blockHeight(ctx context.Context) (uint64, error) {
	resp, err := c.rpc.RpcClient.GetBlockHeight(ctx)
	if err != nil {
		return 0, err
	}
	if rpcErr := resp.GetError(); rpcErr != nil {
		return 0, rpcErr
	}
	return resp.Result, nil
}

func (c *SolanaClient) accountExists(ctx context.Context, address string) (bool, error) {
	info, err := c.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "not found") || strings.Contains(msg, "account does not exist") {
			return false, nil
		}
		return false, classifyRPCError("get account info", err)
	}
	return info.Owner != (common.PublicKey{}), nil
}

func classifyRPCError(op string, err error) error {
	if protocol.TransientNetwork(err) {
		return protocol.ErrLedgerTransient.Wrapf("%s: %v", op, err)
	}
	return protocol.ErrLedgerRejected.Wrapf("%s: %v", op, err)
}
