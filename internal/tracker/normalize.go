package tracker

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agatticelli/crypto-tray-feed/internal/marketdata"
)

// maxOneDayPoints caps the series derived from the 7-day chart
const maxOneDayPoints = 25

// historicalSeries holds the concurrently fetched charts of a detail view.
// A nil series failed or was empty.
type historicalSeries struct {
	week  []float64
	month []float64
	year  []float64
}

func decimalString(v *float64) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromFloat(*v).String()
}

func optionalDecimal(v *float64) *string {
	if v == nil {
		return nil
	}
	s := decimal.NewFromFloat(*v).String()
	return &s
}

func usd[T any](m map[string]*T) *T {
	return m["usd"]
}

// normalizeMarkets converts a market-cap-descending listing. Rank is the
// 1-based position in the listing; the upstream rank field is ignored.
func normalizeMarkets(coins []marketdata.MarketCoin) []Asset {
	assets := make([]Asset, 0, len(coins))
	for i, coin := range coins {
		assets = append(assets, Asset{
			ID:                coin.ID,
			Rank:              strconv.Itoa(i + 1),
			Symbol:            coin.Symbol,
			Name:              coin.Name,
			PriceUSD:          decimalString(coin.CurrentPrice),
			ChangePercent24Hr: decimalString(coin.PriceChangePercentage24h),
			MarketCapUSD:      decimalString(coin.MarketCap),
			VolumeUSD24Hr:     decimalString(coin.TotalVolume),
			Image:             coin.Image,
		})
	}
	return assets
}

// normalizeCoin builds the summary of a detail payload, ranked by the
// upstream market cap rank (0 when unranked).
func normalizeCoin(coin *marketdata.CoinDetail) Asset {
	md := coin.MarketData
	if md == nil {
		md = &marketdata.CoinMarketData{}
	}

	rank := 0
	if coin.MarketCapRank != nil {
		rank = *coin.MarketCapRank
	}

	return Asset{
		ID:                coin.ID,
		Rank:              strconv.Itoa(rank),
		Symbol:            coin.Symbol,
		Name:              coin.Name,
		PriceUSD:          decimalString(usd(md.CurrentPrice)),
		ChangePercent24Hr: decimalString(md.PriceChangePercentage24h),
		MarketCapUSD:      decimalString(usd(md.MarketCap)),
		VolumeUSD24Hr:     decimalString(usd(md.TotalVolume)),
	}
}

func normalizeDetail(coin *marketdata.CoinDetail, series historicalSeries) *AssetDetail {
	md := coin.MarketData
	if md == nil {
		md = &marketdata.CoinMarketData{}
	}

	detail := &AssetDetail{
		Asset:             normalizeCoin(coin),
		Description:       firstSentence(coin.Description["en"]),
		ATHPrice:          optionalDecimal(usd(md.ATH)),
		ATHDate:           usd(md.ATHDate),
		ATLPrice:          optionalDecimal(usd(md.ATL)),
		ATLDate:           usd(md.ATLDate),
		PriceChange7d:     optionalDecimal(md.PriceChangePercentage7d),
		PriceChange30d:    optionalDecimal(md.PriceChangePercentage30d),
		PriceChange1y:     optionalDecimal(md.PriceChangePercentage1y),
		CirculatingSupply: optionalDecimal(md.CirculatingSupply),
		TotalSupply:       optionalDecimal(md.TotalSupply),
		MaxSupply:         optionalDecimal(md.MaxSupply),
		Sparkline30d:      series.month,
		Sparkline1y:       series.year,
	}

	detail.Image = coin.Image.Large
	if detail.Image == "" {
		detail.Image = coin.Image.Small
	}
	if len(coin.Links.Homepage) > 0 {
		detail.Homepage = coin.Links.Homepage[0]
	}

	// the embedded sparkline is preferred over the fetched 7-day chart
	week := series.week
	if md.Sparkline7d != nil && len(md.Sparkline7d.Price) > 0 {
		week = md.Sparkline7d.Price
	}
	detail.Sparkline = week
	detail.Sparkline1d = deriveOneDay(week)

	return detail
}

// deriveOneDay approximates the last day of a 7-day series by taking its
// last min(25, len/7) points. It is not timestamp based.
func deriveOneDay(week []float64) []float64 {
	n := min(maxOneDayPoints, len(week)/7)
	if n == 0 {
		return nil
	}

	out := make([]float64, n)
	copy(out, week[len(week)-n:])
	return out
}

func firstSentence(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	first, _, _ := strings.Cut(text, ".")
	return first + "."
}

func normalizeGlobal(data *marketdata.GlobalData) *GlobalMarketSnapshot {
	snapshot := &GlobalMarketSnapshot{
		MarketCapATH:     data.MarketCapATH,
		MarketCapATHDate: data.MarketCapATHDate,
	}
	if v := usd(data.TotalMarketCap); v != nil {
		snapshot.TotalMarketCap = *v
	}
	if data.MarketCapChangePercentage24hUSD != nil {
		snapshot.TotalMarketCapChange24h = *data.MarketCapChangePercentage24hUSD
	}
	if data.ActiveCryptocurrencies != nil {
		snapshot.ActiveCoins = *data.ActiveCryptocurrencies
	}
	if data.Markets != nil {
		snapshot.Markets = *data.Markets
	}
	return snapshot
}
