// Package advisor wraps a Gemini chat session that explains the ledger's
// realized gains and tax figures in plain language.
package advisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"

	"github.com/ebau/lotledger"
)

const model = "gemini-2.5-pro"

const systemInstruction = `
You are a tax-lot accounting assistant for a Solana holder.
The briefing below is the user's actual ledger data: realized gains split into
short-term (held under 365 days) and long-term (365 days or more), staking
income valued at acquisition, and the tax owed under the configured rates.
Explain figures plainly and show the arithmetic when asked. You are not a tax
professional and must say so when the user asks for filing advice.
`

// Advisor is one interactive session over a gains briefing.
type Advisor struct {
	w    io.Writer
	r    *bufio.Reader
	chat *genai.Chat
}

func New(w io.Writer, r io.Reader) *Advisor {
	return &Advisor{w: w, r: bufio.NewReader(r)}
}

// Start creates the chat session primed with the briefing.
func (a *Advisor) Start(ctx context.Context, client *genai.Client, briefing string) error {
	chat, err := client.Chats.Create(ctx, model, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}, nil)
	if err != nil {
		return err
	}
	a.chat = chat
	if briefing != "" {
		if _, err := a.Ask(ctx, "Here is my ledger briefing:\n"+briefing+"\nAcknowledge in one sentence."); err != nil {
			return err
		}
	}
	return nil
}

// Ask sends one question and returns the model's text answer.
func (a *Advisor) Ask(ctx context.Context, question string) (string, error) {
	resp, err := a.chat.Send(ctx, &genai.Part{Text: question})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from advisor")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

const prompt = "advisor> "

// Run starts the interactive REPL session. Initial prompts are consumed
// before reading from the user; 'bye' or EOF ends the session.
func (a *Advisor) Run(ctx context.Context, client *genai.Client, briefing string, prompts ...string) error {
	if a.chat == nil {
		if err := a.Start(ctx, client, briefing); err != nil {
			return err
		}
	}

	fmt.Fprintln(a.w, "Ask about your realized gains and taxes. Type 'bye' to exit.")
	for {
		fmt.Fprint(a.w, prompt)
		var input string
		if len(prompts) > 0 {
			input, prompts = prompts[0], prompts[1:]
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			fmt.Fprintln(a.w, input)
		} else {
			var err error
			input, err = a.r.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
		if strings.TrimSpace(input) == "bye" {
			return nil
		}

		answer, err := a.Ask(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.w, answer)
	}
}

// Briefing renders the ledger figures the advisor reasons about.
func Briefing(report *lotledger.GainsReport, rate lotledger.TaxRate, holdings []lotledger.Holding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tax rates: long-term %.4f, short-term %.4f\n", rate.LongTermGain, rate.ShortTermGain)
	fmt.Fprintf(&b, "Disposed lots: %d\n", report.Lots)
	for token, amount := range report.Amounts {
		fmt.Fprintf(&b, "Disposed %s\n", token.FormatAmount(amount))
	}
	fmt.Fprintf(&b, "Proceeds: %s\nCost basis: %s\n", report.Proceeds, report.CostBasis)
	fmt.Fprintf(&b, "Short-term gain: %s\nLong-term gain: %s\n", report.ShortTerm, report.LongTerm)
	fmt.Fprintf(&b, "Income (rewards at acquisition): %s\n", report.Income)
	fmt.Fprintf(&b, "Total gain: %s\nTax owed: %s\n", report.Gain, report.Tax)
	for _, h := range holdings {
		fmt.Fprintf(&b, "Still held: %s across %d accounts\n", h.Token.FormatAmount(h.Amount), h.Accounts)
	}
	return b.String()
}
