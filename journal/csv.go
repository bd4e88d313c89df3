package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"time"
)

var (
	tradeHeader  = []string{"trade_id", "instrument", "side", "lots", "leverage", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"}
	equityHeader = []string{"time", "balance", "equity", "margin_used", "free_margin", "margin_level"}
)

// csvFile is an append-only CSV file flushed after every row.
type csvFile struct {
	fh *os.File
	w  *csv.Writer
}

// openCSV appends to path, writing header only when the file is new or empty.
func openCSV(path string, header []string) (*csvFile, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	c := &csvFile{fh: fh, w: csv.NewWriter(fh)}
	if st.Size() == 0 {
		if err := c.write(header); err != nil {
			fh.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.fh.Close())
}

// CSVJournal writes trades and equity snapshots to two CSV files. Existing
// files are appended to, so one journal can span many sessions.
type CSVJournal struct {
	trades *csvFile
	equity *csvFile
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	trades, err := openCSV(tradesPath, tradeHeader)
	if err != nil {
		return nil, err
	}
	equity, err := openCSV(equityPath, equityHeader)
	if err != nil {
		trades.close()
		return nil, err
	}
	return &CSVJournal{trades: trades, equity: equity}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.trades.write([]string{
		t.TradeID,
		t.Instrument,
		t.Side,
		num(t.Lots),
		strconv.Itoa(t.Leverage),
		num(t.EntryPrice),
		num(t.ExitPrice),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		num(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.equity.write([]string{
		e.Time.UTC().Format(time.RFC3339),
		num(e.Balance),
		num(e.Equity),
		num(e.MarginUsed),
		num(e.FreeMargin),
		num(e.MarginLevel),
	})
}

func (j *CSVJournal) Close() error {
	return errors.Join(j.trades.close(), j.equity.close())
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
