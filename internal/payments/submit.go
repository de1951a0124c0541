package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/cards"
	"storefront/api_payments/internal/gateway"
	"storefront/api_payments/internal/instruction"
	"storefront/api_payments/internal/wallet"
	"storefront/api_payments/pkg/logging"
)

// Rail names as they appear in attempts and reports.
const (
	RailOnchain = "onchain"
	RailGateway = "gateway"
	RailCard    = "card"
)

// SubmitRequest carries what the adapter needs to start one attempt.
type SubmitRequest struct {
	OrderRef string
	Rail     string
	Network  string
	Token    string

	// On-chain: a tx hash the buyer's wallet already broadcast, a signed raw
	// transaction for us to relay, or a built instruction for the injected
	// signer to execute. One of the three should be set; Destination feeds
	// the instruction build when the caller supplies none.
	TxHash      string
	RawTx       string
	Destination string
	Instruction instruction.PaymentInstruction

	// Gateway and card rails.
	AmountUsd   decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
	WebhookURL  string
	Email       string
}

// SubmitResult is the started attempt plus where to send the buyer next.
type SubmitResult struct {
	Attempt    *Attempt
	PaymentURL string // set for hosted rails
}

// Adapter submits payments across rails and yields trackable attempts with
// a matching poll function for the tracker.
type Adapter struct {
	signer   wallet.Signer
	chain    *wallet.RPCClient
	receipts wallet.ReceiptSource
	gateway  *gateway.Client
	cards    *cards.Service
	logger   logging.Logger
}

// NewAdapter creates a submission adapter. The signer is the host-provided
// signing capability; nil means buyers must broadcast (or pre-sign) their
// own transactions.
func NewAdapter(signer wallet.Signer, chain *wallet.RPCClient, receipts wallet.ReceiptSource, gw *gateway.Client, cardSvc *cards.Service, logger logging.Logger) *Adapter {
	return &Adapter{
		signer:   signer,
		chain:    chain,
		receipts: receipts,
		gateway:  gw,
		cards:    cardSvc,
		logger:   logger,
	}
}

// Submit starts a payment attempt on the requested rail and returns it along
// with the poll function that tracks it.
func (ad *Adapter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, PollFunc, error) {
	switch req.Rail {
	case RailOnchain:
		return ad.submitOnchain(ctx, req)
	case RailGateway:
		return ad.submitGateway(ctx, req)
	case RailCard:
		return ad.submitCard(ctx, req)
	default:
		return nil, nil, fmt.Errorf("unsupported payment rail: %s", req.Rail)
	}
}

func (ad *Adapter) submitOnchain(ctx context.Context, req SubmitRequest) (*SubmitResult, PollFunc, error) {
	txHash := strings.TrimSpace(req.TxHash)
	if txHash == "" {
		var err error
		switch {
		case strings.TrimSpace(req.RawTx) != "":
			if ad.chain == nil {
				return nil, nil, fmt.Errorf("transaction relay not configured")
			}
			txHash, err = ad.chain.SubmitRawTransaction(ctx, req.Network, req.RawTx)
		case req.Instruction != nil:
			txHash, err = ad.signInstruction(ctx, req.Network, req.Instruction)
		default:
			return nil, nil, fmt.Errorf("on-chain submission needs an instruction, tx_hash or raw_tx")
		}
		if err != nil {
			return nil, nil, err
		}
	}

	attempt := NewAttempt(RailOnchain, req.Network, req.Token, txHash)
	poll := ad.onchainPoll(req.Network, txHash)
	return &SubmitResult{Attempt: attempt}, poll, nil
}

// signInstruction hands a built instruction to the injected signer and
// returns the broadcast transaction hash.
func (ad *Adapter) signInstruction(ctx context.Context, network string, instr instruction.PaymentInstruction) (string, error) {
	if ad.signer == nil {
		return "", fmt.Errorf("wallet signer not configured")
	}
	switch in := instr.(type) {
	case instruction.NativeTransfer:
		return ad.signer.SubmitNativeTransfer(ctx, network, in.To, in.AmountWei)
	case instruction.TokenTransfer:
		return ad.signer.SubmitContractCall(ctx, network, in.Contract, in.Calldata)
	default:
		return "", fmt.Errorf("instruction kind %s is not payable on-chain", instr.Kind())
	}
}

// onchainPoll maps receipt lookups to verdicts. A mined receipt that is not
// yet deep enough reads as confirming; a revert is terminal failure.
func (ad *Adapter) onchainPoll(network, txHash string) PollFunc {
	return func(ctx context.Context) (Verdict, error) {
		receipt, err := ad.receipts.GetReceipt(ctx, network, txHash)
		if err != nil {
			return VerdictPending, err
		}
		if receipt == nil {
			return VerdictPending, nil
		}
		if receipt.Reverted() {
			return VerdictFailed, nil
		}

		confirmed, err := ad.receipts.HasRequiredConfirmations(ctx, network, wallet.ParseHexInt64(receipt.BlockNumber))
		if err != nil {
			return VerdictConfirming, err
		}
		if !confirmed {
			return VerdictConfirming, nil
		}
		return VerdictSettled, nil
	}
}

func (ad *Adapter) submitGateway(ctx context.Context, req SubmitRequest) (*SubmitResult, PollFunc, error) {
	if ad.gateway == nil {
		return nil, nil, fmt.Errorf("payment gateway not configured")
	}
	session, err := ad.gateway.CreateSession(ctx, req.OrderRef, req.AmountUsd, req.Currency, req.Description, req.ReturnURL, req.WebhookURL)
	if err != nil {
		return nil, nil, err
	}

	attempt := NewAttempt(RailGateway, "", "", session.SessionID)
	poll := func(ctx context.Context) (Verdict, error) {
		outcome, err := ad.gateway.GetStatus(ctx, session.SessionID)
		if err != nil {
			// Any poll error, a 404 included, stays non-terminal: synthesized
			// session ids are unknown to the gateway until the payment is
			// registered on its side. Only an explicit status fails.
			return VerdictPending, err
		}
		return outcomeVerdict(outcome), nil
	}
	return &SubmitResult{Attempt: attempt, PaymentURL: session.PaymentURL}, poll, nil
}

func (ad *Adapter) submitCard(ctx context.Context, req SubmitRequest) (*SubmitResult, PollFunc, error) {
	if ad.cards == nil {
		return nil, nil, fmt.Errorf("card provider not configured")
	}
	result, err := ad.cards.CreateCheckout(ctx, cards.CheckoutRequest{
		OrderRef:     req.OrderRef,
		Amount:       req.AmountUsd,
		Currency:     req.Currency,
		Description:  req.Description,
		SuccessURL:   req.ReturnURL,
		CancelURL:    req.CancelURL,
		BillingEmail: req.Email,
	})
	if err != nil {
		return nil, nil, err
	}

	attempt := NewAttempt(RailCard, "", "", result.SessionID)
	poll := func(ctx context.Context) (Verdict, error) {
		outcome, err := ad.cards.GetOutcome(ctx, result.SessionID)
		if err != nil {
			return VerdictPending, err
		}
		return outcomeVerdict(outcome), nil
	}
	return &SubmitResult{Attempt: attempt, PaymentURL: result.CheckoutURL}, poll, nil
}

func outcomeVerdict(o gateway.Outcome) Verdict {
	switch o {
	case gateway.OutcomeSettled:
		return VerdictSettled
	case gateway.OutcomeFailed:
		return VerdictFailed
	default:
		return VerdictPending
	}
}
