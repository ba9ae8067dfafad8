package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	accountPrefix        = []byte("account:")
	lendingPoolPrefix    = []byte("lending/pool:")
	lendingPosPrefix     = []byte("lending/position:")
	lendingReqPrefix     = []byte("lending/request:")
	lendingReqCounterKey = ethcrypto.Keccak256([]byte("lending/request-seq"))
	circlePrefix         = []byte("circles/circle:")
	circleStakePrefix    = []byte("circles/stake:")
	circleRoundPrefix    = []byte("circles/round:")
	circleCounterKey     = ethcrypto.Keccak256([]byte("circles/circle-seq"))
	trustScorePrefix     = []byte("trust/score:")
	paymentPrefix        = []byte("payments/payment:")
	paymentAcctPrefix    = []byte("payments/account:")
	paymentCounterKey    = ethcrypto.Keccak256([]byte("payments/payment-seq"))
	ratesModelKey        = ethcrypto.Keccak256([]byte("rates/model"))
	ratesProposalPrefix  = []byte("rates/proposal:")
	ratesProposalListKey = ethcrypto.Keccak256([]byte("rates/proposal-list"))
	ratesCounterKey      = ethcrypto.Keccak256([]byte("rates/proposal-seq"))
	adminConfigKey       = ethcrypto.Keccak256([]byte("admin/config"))
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}
