package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the settings printed on rendered invoice documents.
type BillingConfig struct {
	Company             CompanyConfig `mapstructure:"company"`
	PaymentInstructions string        `mapstructure:"paymentInstructions"`
	DefaultPaymentTerms int           `mapstructure:"defaultPaymentTerms"`
	PageHeightMM        float64       `mapstructure:"pageHeightMM"`
	CellCharBudget      int           `mapstructure:"cellCharBudget"`

	// InvoiceNumberTemplate supports {YYYY} {YY} {MM} {DD} and {SEQ}/{SEQn}.
	InvoiceNumberTemplate string `mapstructure:"invoiceNumberTemplate"`
}

type CompanyConfig struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Email   string `mapstructure:"email"`
	Phone   string `mapstructure:"phone"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Company: CompanyConfig{
			Name:    "Freight Logistics Co.",
			Address: "100 Depot Road, Suite 4",
			Email:   "billing@freightlogistics.example",
			Phone:   "+1 555 010 2000",
		},
		PaymentInstructions: "Please include the invoice number with your remittance.",
		DefaultPaymentTerms: 30,
		PageHeightMM:        250,
		CellCharBudget:      18,

		InvoiceNumberTemplate: "INV-{YYYY}{MM}-{SEQ5}",
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, mainly for tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tmsbilling")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TMSBILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.company.name", defaults.Company.Name)
	v.SetDefault("billing.company.address", defaults.Company.Address)
	v.SetDefault("billing.company.email", defaults.Company.Email)
	v.SetDefault("billing.company.phone", defaults.Company.Phone)
	v.SetDefault("billing.paymentInstructions", defaults.PaymentInstructions)
	v.SetDefault("billing.defaultPaymentTerms", defaults.DefaultPaymentTerms)
	v.SetDefault("billing.pageHeightMM", defaults.PageHeightMM)
	v.SetDefault("billing.cellCharBudget", defaults.CellCharBudget)
	v.SetDefault("billing.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Company.Name) == "" {
		return errors.New("billing.company.name cannot be empty")
	}
	if cfg.DefaultPaymentTerms <= 0 {
		return errors.New("billing.defaultPaymentTerms must be positive")
	}
	if cfg.PageHeightMM < 100 {
		return errors.New("billing.pageHeightMM must be at least 100")
	}
	if cfg.CellCharBudget < 4 {
		return errors.New("billing.cellCharBudget must be at least 4")
	}
	if !strings.Contains(cfg.InvoiceNumberTemplate, "{SEQ") {
		return errors.New("billing.invoiceNumberTemplate must contain a {SEQ} token")
	}
	return nil
}
