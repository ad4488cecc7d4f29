// Package scenario は時間変化する負荷シナリオの実行機能を提供する。
//
// シナリオエンジンはワーカープールを所有し、プロファイルに従って
// 目標負荷をステップごとに更新する。
//
// # プロファイル
//
// - steady: 一定負荷
// - ramp: 0からピークまでの線形増加
// - sine: 正弦波状の増減
// - spike: 低負荷とピークの交互切り替え
// - sweep: 一定負荷のまま計算種類を巡回
//
// # プリセットシナリオ
//
// - steady: 全ワーカー50%の一定負荷
// - ramp: 60秒かけて0%から100%へ
// - sine: 80%をピークとする正弦波
// - spike: 10%と90%の交互スパイク
// - sweep: 75%負荷で全計算種類を巡回
// - quick: 短時間の動作確認
//
// # 使用例
//
//	config := scenario.RampScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
