package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/report"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleMonth() (*report.MonthlyOccupancy, *report.PaymentsSummary) {
	start := time.Date(2028, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	locationID := uuid.New()
	bookingID := uuid.New()

	occupancy := &report.MonthlyOccupancy{
		LocationID: locationID,
		Start:      start,
		End:        end,
		Lines: []report.OccupancyLine{{
			BookingID:       bookingID,
			ResourceName:    "Blue room",
			UserID:          uuid.New(),
			NightsThisMonth: 3,
			TotalNights:     3,
			Rate:            decimal.RequireFromString("105"),
			Total:           decimal.RequireFromString("315"),
			TotalOwed:       decimal.RequireFromString("145"),
			PartialPayment:  true,
		}},
		Rooms: []report.RoomOccupancy{{
			Name:             "Blue room",
			OccupiedNights:   3,
			ReservableNights: 31,
			OccupancyRate:    decimal.RequireFromString("9.68"),
			Income:           decimal.RequireFromString("310"),
		}},
		TotalOccupiedNights:   3,
		TotalReservableNights: 31,
		TotalIncome:           decimal.RequireFromString("310"),
	}
	payments := &report.PaymentsSummary{
		LocationID: locationID,
		Start:      start,
		End:        end,
		Rows: []report.PaymentRow{{
			PaymentID:     uuid.New(),
			BillID:        uuid.New(),
			SubjectKind:   billing.SubjectBooking,
			SubjectID:     bookingID,
			PaymentDate:   time.Date(2028, time.January, 12, 0, 0, 0, 0, time.UTC),
			Service:       billing.ServiceStripe,
			Method:        "visa",
			TransactionID: "ch_123",
			Amount:        decimal.RequireFromString("200"),
			ToHouse:       decimal.RequireFromString("190.48"),
			NonHouseFees:  decimal.RequireFromString("9.52"),
		}},
		BookingTotal: decimal.RequireFromString("200"),
		Total:        decimal.RequireFromString("200"),
	}
	return occupancy, payments
}

func TestExcelExporter_WriteMonth(t *testing.T) {
	occupancy, payments := sampleMonth()
	var buf bytes.Buffer

	require.NoError(t, NewExcelExporter().WriteMonth(&buf, occupancy, payments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetRooms, SheetStays, SheetPayments}, f.GetSheetList())

	t.Run("summary", func(t *testing.T) {
		rows, err := f.GetRows(SheetSummary)
		require.NoError(t, err)
		assert.Equal(t, []string{"Metric", "Value"}, rows[0])
		assert.Equal(t, []string{"Period start", "2028-01-01"}, rows[1])
		assert.Equal(t, []string{"Period end", "2028-01-31"}, rows[2])
		assert.Equal(t, []string{"Occupied nights", "3"}, rows[3])

		income, err := f.GetCellValue(SheetSummary, "B7", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "310", income)
	})

	t.Run("rooms", func(t *testing.T) {
		rows, err := f.GetRows(SheetRooms)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Room", rows[0][0])
		assert.Equal(t, "Blue room", rows[1][0])
		assert.Equal(t, "31", rows[1][2])
	})

	t.Run("stays", func(t *testing.T) {
		rows, err := f.GetRows(SheetStays)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, occupancy.Lines[0].BookingID.String(), rows[1][0])
		assert.Equal(t, "TRUE", rows[1][9])
	})

	t.Run("payments", func(t *testing.T) {
		rows, err := f.GetRows(SheetPayments)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"2028-01-12", payments.Rows[0].BillID.String(), "booking", "Stripe", "visa", "ch_123"}, rows[1][:6])

		toHouse, err := f.GetCellValue(SheetPayments, "H2", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "190.48", toHouse)
	})

	t.Run("header is bold", func(t *testing.T) {
		styleID, err := f.GetCellStyle(SheetRooms, "A1")
		require.NoError(t, err)
		style, err := f.GetStyle(styleID)
		require.NoError(t, err)
		require.NotNil(t, style.Font)
		assert.True(t, style.Font.Bold)
	})
}

func TestExcelExporter_EmptyMonth(t *testing.T) {
	occupancy, payments := sampleMonth()
	occupancy.Lines, occupancy.Rooms, payments.Rows = nil, nil, nil
	var buf bytes.Buffer

	require.NoError(t, NewExcelExporter().WriteMonth(&buf, occupancy, payments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetPayments)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestExcelExporter_RequiresReports(t *testing.T) {
	occupancy, _ := sampleMonth()
	err := NewExcelExporter().WriteMonth(&bytes.Buffer{}, occupancy, nil)
	assert.Error(t, err)
}
