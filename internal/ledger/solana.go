package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/provenonce/beats/pkg/semver"
)

const (
	// confirmTimeout bounds the finalization wait after publish.
	confirmTimeout = 60 * time.Second
	// confirmPollInterval is the HTTP status polling cadence. Status is
	// polled, never subscribed: the service must run in environments
	// with no long-lived sockets.
	confirmPollInterval = 2 * time.Second
)

// Compatible Solana core major versions.
var compatibleNodeVersions = []semver.Semver{
	semver.NewSemver(1, 0, 0),
	semver.NewSemver(2, 0, 0),
}

// SolanaLedger talks to a Solana RPC node. The writer keypair signs
// every published memo transaction.
type SolanaLedger struct {
	client  *rpc.Client
	signer  solana.PrivateKey
	rpcURL  string
	timeout time.Duration
}

// NewSolanaLedger builds a ledger client. The transport sends
// Cache-Control: no-store on every request so intermediaries never
// serve a cached signature status on the publish path.
func NewSolanaLedger(rpcURL, keypairB58 string, timeout time.Duration) (*SolanaLedger, error) {
	signer, err := solana.PrivateKeyFromBase58(keypairB58)
	if err != nil {
		return nil, fmt.Errorf("decode writer keypair: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := rpc.NewWithHeaders(rpcURL, map[string]string{
		"Cache-Control": "no-store",
	})
	return &SolanaLedger{
		client:  client,
		signer:  signer,
		rpcURL:  rpcURL,
		timeout: timeout,
	}, nil
}

// CheckVersion ensures the RPC node advertises a compatible core
// version before the service starts using it.
func (l *SolanaLedger) CheckVersion(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.client.GetVersion(ctx)
	if err != nil {
		return fmt.Errorf("get node version: %w", err)
	}
	ver, err := semver.ParseVersionStr(out.SolanaCore)
	if err != nil {
		return fmt.Errorf("parse node version %q: %w", out.SolanaCore, err)
	}
	if !semver.AnyCompatible(compatibleNodeVersions, ver) {
		return fmt.Errorf("node core version %v is not compatible, need one of %v",
			ver, compatibleNodeVersions)
	}
	log.Printf("[LEDGER] Connected to Solana RPC %s, core version %v", l.rpcURL, ver)
	return nil
}

// WriterAddress returns the base58 writer address.
func (l *SolanaLedger) WriterAddress() string {
	return l.signer.PublicKey().String()
}

// RPCURL returns the configured RPC endpoint.
func (l *SolanaLedger) RPCURL() string {
	return l.rpcURL
}

// RecentMemos returns finalized memo-bearing transactions at the writer
// address, newest first. Failed transactions are skipped.
func (l *SolanaLedger) RecentMemos(ctx context.Context, limit int) ([]MemoEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	sigs, err := l.client.GetSignaturesForAddressWithOpts(ctx, l.signer.PublicKey(),
		&rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", l.WriterAddress(), err)
	}

	entries := make([]MemoEntry, 0, len(sigs))
	for _, s := range sigs {
		if s.Err != nil || s.Memo == nil {
			continue
		}
		entries = append(entries, MemoEntry{
			Signature:          s.Signature.String(),
			ConfirmationStatus: string(s.ConfirmationStatus),
			Memo:               *s.Memo,
		})
	}
	return entries, nil
}

// PublishMemo submits a memo transaction from the writer address and
// polls signature status until it reaches finalized. Refuses to submit
// when the writer balance is below the fee floor.
func (l *SolanaLedger) PublishMemo(ctx context.Context, payload []byte) (*PublishResult, error) {
	balance, err := l.AccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("check writer balance: %w", err)
	}
	if balance < MinWriterBalance {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrLowBalance, balance, MinWriterBalance)
	}

	sendCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	recent, err := l.client.GetLatestBlockhash(sendCtx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}

	writer := l.signer.PublicKey()
	ix := solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(writer, false, true)},
		payload,
	)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(writer),
	)
	if err != nil {
		return nil, fmt.Errorf("build memo transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(writer) {
			return &l.signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign memo transaction: %w", err)
	}

	sig, err := l.client.SendTransactionWithOpts(sendCtx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("send memo transaction: %w", err)
	}

	slot, err := l.awaitFinalized(ctx, sig)
	if err != nil {
		return nil, err
	}
	log.Printf("[LEDGER] Memo finalized, signature %s slot %d", sig, slot)
	return &PublishResult{Signature: sig.String(), Slot: slot}, nil
}

// awaitFinalized polls signature status every confirmPollInterval until
// the transaction is finalized, errors, or the window closes.
func (l *SolanaLedger) awaitFinalized(ctx context.Context, sig solana.Signature) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		case <-ticker.C:
			out, err := l.client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				// Transient RPC failures keep polling; the deadline
				// bounds the total wait.
				continue
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			st := out.Value[0]
			if st.Err != nil {
				return 0, fmt.Errorf("transaction %s failed on chain: %v", sig, st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return st.Slot, nil
			}
		}
	}
}

// ExternalEntropy returns the latest finalized blockhash. Unreadable
// entropy is reported as ErrEntropyUnavailable so anchor advancement
// fails closed.
func (l *SolanaLedger) ExternalEntropy(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return out.Value.Blockhash.String(), nil
}

// AccountBalance returns the writer balance in lamports.
func (l *SolanaLedger) AccountBalance(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.client.GetBalance(ctx, l.signer.PublicKey(), rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", l.WriterAddress(), err)
	}
	return out.Value, nil
}
