package il2prx

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store keeps processing runs and their packets in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path and brings
// the schema up to date.
func OpenStore(path string) (*Store, error) {
	var db, err = sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	var s = &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp runs all pending migrations up to the latest version.
func (s *Store) MigrateUp() error {
	var src, err = iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Not closing m: that would close the shared *sql.DB.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type Run struct {
	ID              int64
	SessionUUID     string
	SourceFile      string
	StartTime       time.Time
	OutputPath      string
	OutputFile      string
	AccessThreshold int
	StorePackets    bool
	Seed            uint16
	PacketCount     int
	GoodPackets     int
	Notes           string
}

// CreateRun records the start of a processing run and returns its id.
func (s *Store) CreateRun(ctx context.Context, r Run) (int64, error) {
	if r.SessionUUID == "" {
		r.SessionUUID = uuid.NewString()
	}
	if r.StartTime.IsZero() {
		r.StartTime = time.Now()
	}

	var res, err = s.db.ExecContext(ctx, `
		INSERT INTO processing_run (session_uuid, source_file, start_time_utc, output_path,
			access_threshold, store_packets, seed, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionUUID, r.SourceFile, r.StartTime.UTC().Format(time.RFC3339), r.OutputPath,
		r.AccessThreshold, r.StorePackets, int(r.Seed), r.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to create processing run: %w", err)
	}
	return res.LastInsertId()
}

// SetRunOutputFile remembers where the payload file of a run went.
func (s *Store) SetRunOutputFile(ctx context.Context, runID int64, path string) error {
	var _, err = s.db.ExecContext(ctx, "UPDATE processing_run SET output_file = ? WHERE id = ?", path, runID)
	if err != nil {
		return fmt.Errorf("failed to set output file of run %d: %w", runID, err)
	}
	return nil
}

func (s *Store) StorePacket(ctx context.Context, p *Packet) error {
	var _, err = s.db.ExecContext(ctx, `
		INSERT INTO packet (
			length_bytes, processing_run_id,
			header_hex, header_plain_hex, header_parity_hex,
			payload_hex, payload_parity_hex, crc_hex,
			header_corrections, payload_corrections,
			header_ok, payload_ok, crc_ok, scrambler_ok,
			crc16_computed, crc16_received,
			src_addr, dest_addr,
			packet_error_type, payload_byte_count, packet_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FrameLength, p.RunID,
		hex.EncodeToString(p.Header), hex.EncodeToString(p.HeaderPlain), hex.EncodeToString(p.HeaderParity),
		hex.EncodeToString(p.Payload), hex.EncodeToString(p.PayloadParity), hex.EncodeToString(p.EncodedCRC),
		int(p.HeaderCorrections), int(p.PayloadCorrections),
		p.HeaderOK, p.PayloadOK, p.CRCOK, p.ScramblerOK,
		int(p.ComputedFCS), int(p.ReceivedFCS),
		addrString(p.Fields.Src, p.Fields.SrcSSID), addrString(p.Fields.Dest, p.Fields.DestSSID),
		p.ErrorType(), p.PayloadByteCount, p.PacketIndex)
	if err != nil {
		return fmt.Errorf("failed to store packet %d of run %d: %w", p.PacketIndex, p.RunID, err)
	}
	return nil
}

// RunSummary counts the packets of a run, saves the counts on the run
// and returns the updated run.
func (s *Store) RunSummary(ctx context.Context, runID int64) (Run, error) {
	var total, good int
	var err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(packet_index), COALESCE(SUM(crc_ok), 0)
		FROM packet WHERE processing_run_id = ?`, runID).Scan(&total, &good)
	if err != nil {
		return Run{}, fmt.Errorf("failed to count packets of run %d: %w", runID, err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE processing_run SET packet_count = ?, good_packets = ? WHERE id = ?", total, good, runID)
	if err != nil {
		return Run{}, fmt.Errorf("failed to update run %d: %w", runID, err)
	}

	return s.GetRun(ctx, runID)
}

func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	var r Run
	var start string
	var sourceFile, outputPath, outputFile, notes sql.NullString
	var threshold sql.NullInt64
	var seed int

	var err = s.db.QueryRowContext(ctx, `
		SELECT id, session_uuid, source_file, start_time_utc, output_path, output_file,
			access_threshold, store_packets, seed, packet_count, good_packets, notes
		FROM processing_run WHERE id = ?`, runID).Scan(
		&r.ID, &r.SessionUUID, &sourceFile, &start, &outputPath, &outputFile,
		&threshold, &r.StorePackets, &seed, &r.PacketCount, &r.GoodPackets, &notes)
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run %d: %w", runID, err)
	}

	r.SourceFile = sourceFile.String
	r.OutputPath = outputPath.String
	r.OutputFile = outputFile.String
	r.Notes = notes.String
	r.AccessThreshold = int(threshold.Int64)
	r.Seed = uint16(seed)
	r.StartTime, _ = time.Parse(time.RFC3339, start)
	return r, nil
}

// Packets reads back the stored packets of a run in index order.
func (s *Store) Packets(ctx context.Context, runID int64) ([]*Packet, error) {
	var rows, err = s.db.QueryContext(ctx, `
		SELECT length_bytes, header_hex, header_plain_hex, header_parity_hex,
			payload_hex, payload_parity_hex, crc_hex,
			header_corrections, payload_corrections,
			header_ok, payload_ok, crc_ok, scrambler_ok,
			crc16_computed, crc16_received,
			packet_error_type, payload_byte_count, packet_index
		FROM packet WHERE processing_run_id = ? ORDER BY packet_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query packets of run %d: %w", runID, err)
	}
	defer rows.Close()

	var packets []*Packet
	for rows.Next() {
		var p = &Packet{RunID: runID}
		var hdr, hdrPlain, hdrPar, payload, payPar, crc, errType string
		var hcorr, pcorr, computed, received int

		if err := rows.Scan(&p.FrameLength, &hdr, &hdrPlain, &hdrPar,
			&payload, &payPar, &crc,
			&hcorr, &pcorr,
			&p.HeaderOK, &p.PayloadOK, &p.CRCOK, &p.ScramblerOK,
			&computed, &received,
			&errType, &p.PayloadByteCount, &p.PacketIndex); err != nil {
			return nil, err
		}

		p.Header, _ = hex.DecodeString(hdr)
		p.HeaderPlain, _ = hex.DecodeString(hdrPlain)
		p.HeaderParity, _ = hex.DecodeString(hdrPar)
		p.Payload, _ = hex.DecodeString(payload)
		p.PayloadParity, _ = hex.DecodeString(payPar)
		p.EncodedCRC, _ = hex.DecodeString(crc)
		p.HeaderCorrections = Corrections(hcorr)
		p.PayloadCorrections = Corrections(pcorr)
		p.ComputedFCS = uint16(computed)
		p.ReceivedFCS = uint16(received)
		p.ErrorTags = splitTags(errType)
		if len(p.HeaderPlain) == HeaderSize {
			p.Fields = ParseHeaderFields(p.HeaderPlain)
		}

		packets = append(packets, p)
	}
	return packets, rows.Err()
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ", ")
}
