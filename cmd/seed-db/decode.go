package main

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-group-discount/internal/domain/customer"
	"github.com/xenking/kart-group-discount/internal/domain/product"
)

func readProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	return decodeProducts(data)
}

func readCustomers(path string) ([]customer.Customer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	return decodeCustomers(data)
}

// decodeProducts decodes [{"id","name","price"}]. Prices may be JSON
// strings or numbers.
func decodeProducts(data []byte) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "price":
				p.Price, err = decodeDecimal(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if p.ID == "" {
			return errors.New("product without id")
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

// decodeCustomers decodes [{"id","groupId"}].
func decodeCustomers(data []byte) ([]customer.Customer, error) {
	var out []customer.Customer
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var c customer.Customer
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				c.ID, err = d.Str()
			case "groupId":
				c.GroupID, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if c.ID == "" {
			return errors.New("customer without id")
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode customers")
	}
	return out, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s for decimal", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %q", raw)
	}
	return v, nil
}
