package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

func TestMemorySource_MintRecordsBySide(t *testing.T) {
	s := NewMemorySource()
	s.AddMint("0xowner", model.SideLong, model.MintRecord{MarketID: 1, TransactionID: "0xtx1"})
	s.AddMint("0xowner", model.SideShort, model.MintRecord{MarketID: 2, TransactionID: "0xtx2"})
	s.AddMint("0xother", model.SideLong, model.MintRecord{MarketID: 3, TransactionID: "0xtx3"})

	long, short, err := s.MintRecords(context.Background(), "0xowner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(long) != 1 || long[0].MarketID != 1 {
		t.Errorf("unexpected long records: %+v", long)
	}
	if len(short) != 1 || short[0].MarketID != 2 {
		t.Errorf("unexpected short records: %+v", short)
	}
}

func TestMemorySource_ContractsSortedByIndex(t *testing.T) {
	s := NewMemorySource()
	s.SetContracts([]model.MarketContract{
		{Index: 5, Symbol: "MRI-BTC-28D-20260805"},
		{Index: 3, Symbol: "MRI-BTC-28D-20260803"},
		{Index: 4, Symbol: "MRI-BTC-28D-20260804"},
	})

	contracts, err := s.Contracts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(contracts); i++ {
		if contracts[i-1].Index >= contracts[i].Index {
			t.Fatalf("contracts not sorted by index: %+v", contracts)
		}
	}
}

func TestMemorySource_CopyOnRead(t *testing.T) {
	s := NewMemorySource()
	s.SetContracts([]model.MarketContract{
		{Index: 1, CollateralPerUnit: decimal.NewFromInt(100)},
	})

	first, _ := s.Contracts(context.Background())
	first[0].CollateralPerUnit = decimal.NewFromInt(999)

	second, _ := s.Contracts(context.Background())
	if !second[0].CollateralPerUnit.Equal(decimal.NewFromInt(100)) {
		t.Error("caller mutation leaked into the source")
	}
}
