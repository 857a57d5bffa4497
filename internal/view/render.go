package view

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/sustena-platforms/julctl/internal/models"
)

// Section selects a part of the rendered view.
type Section uint8

const (
	SectionWallets Section = 1 << iota
	SectionChain
	SectionMempool
	SectionValidators
	SectionCommunityFund

	AllSections = SectionWallets | SectionChain | SectionMempool | SectionValidators | SectionCommunityFund
)

// RenderOptions tunes Render.
type RenderOptions struct {
	// MaxBlocks limits the chain table to the most recent blocks; 0 shows all.
	MaxBlocks int
	// Sections to draw; zero draws all of them.
	Sections Section
}

var (
	errorText   = color.New(color.FgRed, color.Bold).SprintFunc()
	loadingText = color.New(color.FgYellow).SprintFunc()
	readyText   = color.New(color.FgGreen).SprintFunc()
	heading     = color.New(color.Bold).SprintFunc()
)

func statusLine[T any](name string, r Resource[T]) string {
	switch r.Status {
	case StatusError:
		return fmt.Sprintf("%s %s", heading(name), errorText("error: "+r.Error))
	case StatusLoading:
		return fmt.Sprintf("%s %s", heading(name), loadingText("refreshing..."))
	case StatusReady:
		return fmt.Sprintf("%s %s", heading(name), readyText("updated "+r.UpdatedAt.Format(time.TimeOnly)))
	default:
		return heading(name)
	}
}

// Render writes the snapshot and the registered wallets as tables.
func Render(w io.Writer, snap Snapshot, wallets []models.Wallet, opts RenderOptions) error {
	if snap.LastError != "" {
		if _, err := fmt.Fprintln(w, errorText("✗ "+snap.LastError)); err != nil {
			return err
		}
	}

	sections := opts.Sections
	if sections == 0 {
		sections = AllSections
	}
	if sections&SectionWallets != 0 {
		if err := renderWallets(w, snap, wallets); err != nil {
			return err
		}
	}
	if sections&SectionChain != 0 {
		if err := renderChain(w, snap.Chain, opts.MaxBlocks); err != nil {
			return err
		}
	}
	if sections&SectionMempool != 0 {
		if err := renderMempool(w, snap.Mempool); err != nil {
			return err
		}
	}
	if sections&SectionValidators != 0 {
		if err := renderValidators(w, snap.Validators); err != nil {
			return err
		}
	}
	if sections&SectionCommunityFund != 0 {
		if _, err := fmt.Fprintf(w, "%s\n%s\n", statusLine("Community fund", snap.CommunityFund), snap.CommunityFund.Value.Balance); err != nil {
			return err
		}
	}
	return nil
}

func renderWallets(w io.Writer, snap Snapshot, wallets []models.Wallet) error {
	fmt.Fprintln(w, heading("Wallets"))
	table := tablewriter.NewTable(w)
	table.Header("Alias", "Address", "Balance", "Status")
	for _, wl := range wallets {
		bal, status := "-", string(StatusIdle)
		if r, ok := snap.Balances[wl.Address]; ok {
			status = string(r.Status)
			if r.Seq > 0 {
				bal = r.Value.String()
			}
			if r.Status == StatusError {
				status = "error: " + r.Error
			}
		}
		if err := table.Append([]string{wl.Alias, wl.Address, bal, status}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderChain(w io.Writer, chain Resource[[]models.Block], maxBlocks int) error {
	fmt.Fprintln(w, statusLine(fmt.Sprintf("Chain (%d blocks)", len(chain.Value)), chain))
	blocks := chain.Value
	if maxBlocks > 0 && len(blocks) > maxBlocks {
		blocks = blocks[len(blocks)-maxBlocks:]
	}
	table := tablewriter.NewTable(w)
	table.Header("Index", "Hash", "Validator", "Time", "Txs")
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		row := []string{
			strconv.FormatUint(b.Index, 10),
			shorten(b.Hash),
			shorten(b.Validator),
			time.Unix(b.Timestamp, 0).UTC().Format(time.DateTime),
			strconv.Itoa(len(b.Transactions)),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderMempool(w io.Writer, mempool Resource[[]models.Transaction]) error {
	fmt.Fprintln(w, statusLine(fmt.Sprintf("Mempool (%d pending)", len(mempool.Value)), mempool))
	table := tablewriter.NewTable(w)
	table.Header("ID", "From", "To", "Amount", "Fee")
	for _, tx := range mempool.Value {
		if err := table.Append([]string{shorten(tx.ID), shorten(tx.From), shorten(tx.To), tx.Amount.String(), tx.Fee.String()}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderValidators(w io.Writer, validators Resource[[]models.Validator]) error {
	fmt.Fprintln(w, statusLine("Validators", validators))
	table := tablewriter.NewTable(w)
	table.Header("Address", "Stake")
	for _, v := range validators.Value {
		if err := table.Append([]string{v.Address, v.Stake.String()}); err != nil {
			return err
		}
	}
	return table.Render()
}

func shorten(s string) string {
	const keep = 10
	if len(s) <= 2*keep+3 {
		return s
	}
	return s[:keep] + "..." + s[len(s)-keep:]
}
