package wtxo

import "github.com/btcsuite/btcd/txscript"

// classifyScript recognizes the shape of a locking script, grounded on
// txscript.GetScriptClass (the same classifier pktd's own txscript fork
// and dcrd's both implement). Anything this classifier doesn't
// recognize as one of the five named patterns maps to PatternUnknown.
func classifyScript(script []byte) ScriptPattern {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyTy:
		return PatternPayToPubKey
	case txscript.PubKeyHashTy:
		return PatternPayToPubKeyHash
	case txscript.ScriptHashTy:
		return PatternPayToScriptHash
	case txscript.MultiSigTy:
		return PatternPayToMultisig
	case txscript.NullDataTy:
		return PatternNullData
	default:
		return PatternUnknown
	}
}
